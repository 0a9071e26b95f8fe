package hook

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/hook"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Code = "webhook"
)

// Webhook Webhook
type Webhook struct {
	WebhookURL         string
	WebhookRequestBody string
	WebhookHeaders     string

	client *http.Client
	logger logger.ILogger
}

var _ hook.IHook = (*Webhook)(nil)

// hasJSONPrefix returns true if the string starts with a JSON open brace.
func hasJSONPrefix(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func NewHook(url string, requestBody string, headers string, client *http.Client, log logger.ILogger) *Webhook {
	if client == nil {
		client = util.CreateHTTPClient(util.HTTPOptions{})
	}
	if log == nil {
		log = sdklogger.Nop()
	}
	return &Webhook{
		WebhookURL:         url,
		WebhookRequestBody: requestBody,
		WebhookHeaders:     headers,
		client:             client,
		logger:             log.WithFields(map[string]any{"hook": Code}),
	}
}

func (w *Webhook) String() string {
	return Code
}

// ExecHook 地址有变化时调用Webhook, 成功和失败都会触发
func (w *Webhook) ExecHook(ctx context.Context, res *service.TickResult) error {
	if w.WebhookURL == "" || res == nil || !res.Changed() {
		return nil
	}

	method := http.MethodGet
	postPara := ""
	contentType := "application/x-www-form-urlencoded"
	if w.WebhookRequestBody != "" {
		method = http.MethodPost
		postPara = w.replacePara(res, w.WebhookRequestBody)
		if json.Valid([]byte(postPara)) {
			contentType = "application/json"
			// 如果 RequestBody 的 JSON 无效但前缀为 JSON 括号则为 JSON
		} else if hasJSONPrefix(postPara) {
			w.logger.Warn("RequestBody 的 JSON 无效！")
		}
	}
	requestURL := w.replacePara(res, w.WebhookURL)
	u, err := url.Parse(requestURL)
	if err != nil {
		return errors.Wrap(err, "Webhook配置中的URL不正确")
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(postPara))
	if err != nil {
		return errors.Wrap(err, "创建Webhook请求异常")
	}

	req.Header.Set("Content-Type", contentType)
	for key, value := range w.CheckParseHeaders(w.WebhookHeaders) {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	body, err := util.GetHTTPResponseOrg(resp, requestURL, err)
	if err != nil {
		return errors.WithMessage(err, "Webhook调用失败")
	}
	w.logger.Infof("Webhook调用成功, 返回数据: %q", string(body))
	return nil
}

// Result maps a tick outcome to the word exposed as #{result}.
func Result(res *service.TickResult) consts.UpdateStatusType {
	switch res.Outcome {
	case service.OutcomeCommitted:
		return consts.UpdatedSuccess
	case service.OutcomeFailed:
		return consts.UpdatedFailed
	}
	return consts.UpdatedNothing
}

// familyResult is the result for one family: a family whose address did not
// move is unchanged even when the tick as a whole failed.
func familyResult(res *service.TickResult, v ddns.IPVersion) consts.UpdateStatusType {
	if res.CacheHit && res.Record.Get(v) == res.Previous.Get(v) {
		return consts.UpdatedNothing
	}
	if !res.Record.Get(v).IsValid() && !res.Previous.Get(v).IsValid() {
		return consts.UpdatedNothing
	}
	return Result(res)
}

// replacePara 替换参数
func (w *Webhook) replacePara(res *service.TickResult, orgPara string) (newPara string) {
	orgPara = strings.ReplaceAll(orgPara, "#{ipv4Addr}", addrString(res.Record, ddns.V4))
	orgPara = strings.ReplaceAll(orgPara, "#{ipv4Result}", string(familyResult(res, ddns.V4)))

	orgPara = strings.ReplaceAll(orgPara, "#{ipv6Addr}", addrString(res.Record, ddns.V6))
	orgPara = strings.ReplaceAll(orgPara, "#{ipv6Result}", string(familyResult(res, ddns.V6)))

	orgPara = strings.ReplaceAll(orgPara, "#{result}", string(Result(res)))
	orgPara = strings.ReplaceAll(orgPara, "#{providers}", w.getProvidersStr(res.Providers))

	return orgPara
}

// getProvidersStr 用逗号分割, 如 cloudflare:Success,porkbun:Failure
func (w *Webhook) getProvidersStr(results []service.ProviderResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		status := consts.UpdatedNothing
		switch {
		case r.Err != nil:
			status = consts.UpdatedFailed
		case r.Changed:
			status = consts.UpdatedSuccess
		}
		parts = append(parts, r.Provider+":"+string(status))
	}
	return strings.Join(parts, ",")
}

// CheckParseHeaders 一行一个Header, 如: Authorization: Bearer API_KEY
func (w *Webhook) CheckParseHeaders(headerStr string) (headers map[string]string) {
	headers = make(map[string]string)
	for _, line := range strings.Split(headerStr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			w.logger.Warnf("%s Header不正确", line)
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}

func addrString(record ddns.Record, v ddns.IPVersion) string {
	if addr := record.Get(v); addr.IsValid() {
		return addr.String()
	}
	return ""
}
