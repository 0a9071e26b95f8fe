package godaddy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Endpoint string = "https://api.godaddy.com/v1/domains"
	Code     string = "godaddy"

	defaultTTL = 600
)

type godaddyRecord struct {
	Data string `json:"data"`
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
	Type string `json:"type"`
}

type godaddyRecords []godaddyRecord

type Options struct {
	Key     string
	Secret  string
	APIURL  string
	Domains []string
	TTL     int
	Client  *http.Client
	Logger  logger.ILogger
}

type GoDaddyDNS struct {
	apiURL  string
	domains []ddns.Domain
	ttl     int
	auth    string
	client  *http.Client
	logger  logger.ILogger
}

var _ provider.IProvider = (*GoDaddyDNS)(nil)

func New(opts Options) (*GoDaddyDNS, error) {
	if opts.Key == "" || opts.Secret == "" {
		return nil, errors.New("godaddy: api_key and secret_api_key are required")
	}
	if len(opts.Domains) == 0 {
		return nil, errors.New("godaddy: at least one domain is required")
	}
	domains, err := ddns.ParseDomains(opts.Domains)
	if err != nil {
		return nil, errors.WithMessage(err, "godaddy")
	}
	if opts.APIURL == "" {
		opts.APIURL = Endpoint
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
	return &GoDaddyDNS{
		apiURL:  strings.TrimSuffix(opts.APIURL, "/"),
		domains: domains,
		ttl:     opts.TTL,
		auth:    fmt.Sprintf("sso-key %s:%s", opts.Key, opts.Secret),
		client:  opts.Client,
		logger:  opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (g *GoDaddyDNS) String() string {
	return Code
}

func (g *GoDaddyDNS) Apply(ctx context.Context, record ddns.Record) (changed bool, err error) {
	for _, domain := range g.domains {
		for _, v := range record.Versions() {
			c, err := g.updateDomainRecord(ctx, domain, v.RecordType(), record.Get(v).String())
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}

func (g *GoDaddyDNS) updateDomainRecord(ctx context.Context, domain ddns.Domain, recordType, ipAddr string) (bool, error) {
	var current godaddyRecords
	if err := g.sendReq(ctx, http.MethodGet, recordType, domain, nil, &current); err != nil {
		return false, errors.WithMessagef(err, "query %s record of %s", recordType, domain)
	}
	if len(current) == 1 && current[0].Data == ipAddr {
		g.logger.Debugf("你的IP %s 没有变化, 域名 %s", ipAddr, domain)
		return false, nil
	}

	// PUT replaces every record of this name and type
	err := g.sendReq(ctx, http.MethodPut, recordType, domain, &godaddyRecords{godaddyRecord{
		Data: ipAddr,
		Name: domain.GetSubDomain(),
		TTL:  g.ttl,
		Type: recordType,
	}}, nil)
	if err != nil {
		return false, errors.WithMessagef(err, "update %s record of %s", recordType, domain)
	}
	g.logger.Infof("更新域名解析 %s 成功! IP: %s", domain, ipAddr)
	return true, nil
}

func (g *GoDaddyDNS) sendReq(ctx context.Context, method string, rType string, domain ddns.Domain, data *godaddyRecords, result any) error {
	var body *bytes.Reader
	if data != nil {
		buffer, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buffer)
	} else {
		body = bytes.NewReader(nil)
	}
	path := fmt.Sprintf("%s/%s/records/%s/%s", g.apiURL, domain.DomainName, rType, domain.GetSubDomain())

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set(consts.HeaderAuthorization, g.auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	return util.GetHTTPResponse(resp, path, err, result)
}
