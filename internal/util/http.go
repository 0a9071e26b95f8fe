package util

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/pkg/errors"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultRetryMax       = 2

	// maxBodySize caps response bodies read into memory
	maxBodySize = 1 << 20
)

type HTTPOptions struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	Logger         logger.ILogger
}

func (o *HTTPOptions) withDefaults() HTTPOptions {
	opts := *o
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 5 * time.Second
	}
	return opts
}

// CreateHTTPClient 创建共享的HTTP客户端, 连接失败和5xx会按退避重试
func CreateHTTPClient(opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	transport := cleanhttp.DefaultPooledTransport()
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport.DialContext = dialer.DialContext
	return newRetryClient(transport, opts).StandardClient()
}

// CreateNoProxyHTTPClient 创建只走指定网络(tcp4/tcp6)且不使用代理的HTTP客户端
func CreateNoProxyHTTPClient(network string, opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	transport := cleanhttp.DefaultPooledTransport()
	transport.Proxy = nil
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
	return newRetryClient(transport, opts).StandardClient()
}

func newRetryClient(transport *http.Transport, opts HTTPOptions) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	// callers inspect the status code themselves
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		rc.Logger = leveledLogger{opts.Logger}
	} else {
		rc.Logger = nil
	}
	return rc
}

// leveledLogger routes retryablehttp's logging into ILogger.
type leveledLogger struct {
	log logger.ILogger
}

func (l leveledLogger) fields(kv []any) logger.ILogger {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...any) { l.fields(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.fields(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.fields(kv).Trace(msg) }

// GetHTTPResponse 处理HTTP结果，返回序列化的json
func GetHTTPResponse(resp *http.Response, url string, err error, result any) error {
	body, err := GetHTTPResponseOrg(resp, url, err)
	if err == nil && result != nil && len(body) > 0 {
		if err = json.Unmarshal(body, result); err != nil {
			return errors.Wrapf(err, "decode response from %s", url)
		}
	}
	return err
}

// GetHTTPResponseOrg 处理HTTP结果，返回byte
func GetHTTPResponseOrg(resp *http.Response, url string, err error) ([]byte, error) {
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read response from %s", url)
	}

	// 300及以上状态码都算异常
	if resp.StatusCode >= http.StatusMultipleChoices {
		return body, errors.Errorf("%s returned %s: %s", url, resp.Status, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
