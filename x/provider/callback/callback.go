package callback

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Code = "callback"

	defaultTTL = 600
)

type Options struct {
	// URL and Body are templates, see replacePara.
	URL     string
	Body    string
	Headers map[string]string
	Domains []string
	TTL     int
	Client  *http.Client
	Logger  logger.ILogger
}

// Callback calls a user supplied URL for every domain and address family.
type Callback struct {
	url     string
	body    string
	headers map[string]string
	domains []ddns.Domain
	ttl     string
	client  *http.Client
	logger  logger.ILogger
}

var _ provider.IProvider = (*Callback)(nil)

func New(opts Options) (*Callback, error) {
	if opts.URL == "" {
		return nil, errors.New("callback: url is required")
	}
	if _, err := url.Parse(replacePara(opts.URL, "", ddns.Domain{}, "", "", ddns.Record{})); err != nil {
		return nil, errors.Wrap(err, "callback: invalid url")
	}
	domains, err := ddns.ParseDomains(opts.Domains)
	if err != nil {
		return nil, errors.WithMessage(err, "callback")
	}
	// a callback without domains is called once per family
	if len(domains) == 0 {
		domains = []ddns.Domain{{}}
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Client == nil {
		opts.Client = util.CreateHTTPClient(util.HTTPOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	return &Callback{
		url:     opts.URL,
		body:    opts.Body,
		headers: opts.Headers,
		domains: domains,
		ttl:     strconv.Itoa(opts.TTL),
		client:  opts.Client,
		logger:  opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (cb *Callback) String() string {
	return Code
}

// Apply 添加或更新IPv4/IPv6记录
func (cb *Callback) Apply(ctx context.Context, record ddns.Record) (bool, error) {
	for _, v := range record.Versions() {
		for _, domain := range cb.domains {
			if err := cb.call(ctx, domain, v.RecordType(), record.Get(v).String(), record); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (cb *Callback) call(ctx context.Context, domain ddns.Domain, recordType, ipAddr string, record ddns.Record) error {
	method := http.MethodGet
	postPara := ""
	contentType := "application/x-www-form-urlencoded"
	if cb.body != "" {
		method = http.MethodPost
		postPara = replacePara(cb.body, ipAddr, domain, recordType, cb.ttl, record)
		if json.Valid([]byte(postPara)) {
			contentType = "application/json"
		}
	}
	requestURL := replacePara(cb.url, ipAddr, domain, recordType, cb.ttl, record)
	u, err := url.Parse(requestURL)
	if err != nil {
		return errors.Wrap(err, "Callback的URL不正确")
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(postPara))
	if err != nil {
		return errors.Wrap(err, "创建Callback请求异常")
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range cb.headers {
		req.Header.Set(k, v)
	}

	resp, err := cb.client.Do(req)
	body, err := util.GetHTTPResponseOrg(resp, requestURL, err)
	if err != nil {
		return errors.WithMessagef(err, "Callback调用失败, 域名: %s", domain)
	}
	cb.logger.Infof("Callback调用成功, 域名: %s, IP: %s, 返回数据: %q", domain, ipAddr, body)
	return nil
}

// replacePara 替换参数
func replacePara(orgPara, ipAddr string, domain ddns.Domain, recordType string, ttl string, record ddns.Record) (newPara string) {
	orgPara = strings.ReplaceAll(orgPara, "#{ip}", ipAddr)
	orgPara = strings.ReplaceAll(orgPara, "#{domain}", domain.String())
	orgPara = strings.ReplaceAll(orgPara, "#{recordType}", recordType)
	orgPara = strings.ReplaceAll(orgPara, "#{ttl}", ttl)
	orgPara = strings.ReplaceAll(orgPara, "#{ipv4}", addrString(record, ddns.V4))
	orgPara = strings.ReplaceAll(orgPara, "#{ipv6}", addrString(record, ddns.V6))

	for k, v := range domain.GetCustomParams() {
		if len(v) == 1 {
			orgPara = strings.ReplaceAll(orgPara, "#{"+k+"}", v[0])
		}
	}

	return orgPara
}

func addrString(record ddns.Record, v ddns.IPVersion) string {
	if addr := record.Get(v); addr.IsValid() {
		return addr.String()
	}
	return ""
}
