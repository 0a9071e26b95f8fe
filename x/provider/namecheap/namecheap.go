package namecheap

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Endpoint string = "https://dynamicdns.park-your-domain.com/update"
	Code     string = "namecheap"
)

type Options struct {
	Password string
	APIURL   string
	Domains  []string
	Client   *http.Client
	Logger   logger.ILogger
}

// NameCheap updates A records through the dynamic dns endpoint. The endpoint
// has no IPv6 support, so AAAA is skipped.
type NameCheap struct {
	password string
	apiURL   string
	domains  []ddns.Domain
	client   *http.Client
	logger   logger.ILogger
}

var _ provider.IProvider = (*NameCheap)(nil)

func New(opts Options) (*NameCheap, error) {
	if opts.Password == "" {
		return nil, errors.New("namecheap: password is required")
	}
	if len(opts.Domains) == 0 {
		return nil, errors.New("namecheap: at least one domain is required")
	}
	domains, err := ddns.ParseDomains(opts.Domains)
	if err != nil {
		return nil, errors.WithMessage(err, "namecheap")
	}
	if opts.APIURL == "" {
		opts.APIURL = Endpoint
	}
	if opts.Client == nil {
		opts.Client = util.CreateHTTPClient(util.HTTPOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	return &NameCheap{
		password: opts.Password,
		apiURL:   opts.APIURL,
		domains:  domains,
		client:   opts.Client,
		logger:   opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (nc *NameCheap) String() string {
	return Code
}

// Apply pushes the IPv4 address. The endpoint reports no difference between
// a real change and a repeated one, so every successful call counts as changed.
func (nc *NameCheap) Apply(ctx context.Context, record ddns.Record) (bool, error) {
	if record.V6.IsValid() {
		// https://www.namecheap.com/support/knowledgebase/article.aspx/29/11/how-to-dynamically-update-the-hosts-ip-with-an-http-request/
		nc.logger.Debug("Namecheap DDNS 不支持更新 IPv6")
	}
	if !record.V4.IsValid() {
		return false, nil
	}
	ipAddr := record.V4.String()
	for _, domain := range nc.domains {
		if err := nc.request(ctx, domain, ipAddr); err != nil {
			return false, errors.WithMessagef(err, "update %s", domain)
		}
		nc.logger.Infof("修改域名解析 %s 成功！IP: %s", domain, ipAddr)
	}
	return true, nil
}

func (nc *NameCheap) request(ctx context.Context, domain ddns.Domain, ipAddr string) error {
	q := url.Values{}
	q.Set("host", domain.GetSubDomain())
	q.Set("domain", domain.DomainName)
	q.Set("password", nc.password)
	q.Set("ip", ipAddr)
	u := nc.apiURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := nc.client.Do(req)
	// the password travels in the query, keep it out of errors
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	data, err := util.GetHTTPResponseOrg(resp, nc.apiURL, err)
	if err != nil {
		return err
	}

	status := string(data)
	if !strings.Contains(status, "<ErrCount>0</ErrCount>") {
		return errors.Errorf("namecheap rejected the update: %s", responseError(status))
	}
	return nil
}

// responseError extracts the first <Err1> message of an interface response.
func responseError(body string) string {
	const open, closing = "<Err1>", "</Err1>"
	if i := strings.Index(body, open); i >= 0 {
		rest := body[i+len(open):]
		if j := strings.Index(rest, closing); j >= 0 {
			return rest[:j]
		}
	}
	if len(body) > 128 {
		return body[:128] + "..."
	}
	return body
}
