package porkbun

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Endpoint string = "https://api.porkbun.com/api/json/v3"
	Code     string = "porkbun"

	statusSuccess = "SUCCESS"
	defaultTTL    = 600
)

type Options struct {
	APIKey       string
	SecretAPIKey string
	APIURL       string
	Domains      []string
	TTL          int
	Notes        string
	Client       *http.Client
	Logger       logger.ILogger
}

type Porkbun struct {
	apiKey  PorkbunApiKey
	apiURL  string
	domains []ddns.Domain
	ttl     string
	notes   string
	client  *http.Client
	logger  logger.ILogger
}

var _ provider.IProvider = (*Porkbun)(nil)

type PorkbunDomainRecord struct {
	Name    *string `json:"name,omitempty"`    // subdomain
	Type    *string `json:"type,omitempty"`    // record type, e.g. A AAAA CNAME
	Content *string `json:"content,omitempty"` // value
	Ttl     *string `json:"ttl,omitempty"`     // default 600
	Notes   *string `json:"notes,omitempty"`
}

type PorkbunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type PorkbunDomainQueryResponse struct {
	*PorkbunResponse
	Records []PorkbunDomainRecord `json:"records"`
}

type PorkbunApiKey struct {
	AccessKey string `json:"apikey"`
	SecretKey string `json:"secretapikey"`
}

type PorkbunDomainCreateOrUpdateVO struct {
	*PorkbunApiKey
	*PorkbunDomainRecord
}

func New(opts Options) (*Porkbun, error) {
	if opts.APIKey == "" || opts.SecretAPIKey == "" {
		return nil, errors.New("porkbun: api_key and secret_api_key are required")
	}
	if len(opts.Domains) == 0 {
		return nil, errors.New("porkbun: at least one domain is required")
	}
	domains, err := ddns.ParseDomains(opts.Domains)
	if err != nil {
		return nil, errors.WithMessage(err, "porkbun")
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
	return &Porkbun{
		apiKey: PorkbunApiKey{
			AccessKey: opts.APIKey,
			SecretKey: opts.SecretAPIKey,
		},
		apiURL:  strings.TrimSuffix(opts.APIURL, "/"),
		domains: domains,
		ttl:     strconv.Itoa(opts.TTL),
		notes:   opts.Notes,
		client:  opts.Client,
		logger:  opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (pb *Porkbun) String() string {
	return Code
}

// Apply 添加或更新IPv4/IPv6记录
func (pb *Porkbun) Apply(ctx context.Context, record ddns.Record) (changed bool, err error) {
	for _, domain := range pb.domains {
		for _, v := range record.Versions() {
			c, err := pb.addUpdateDomainRecord(ctx, domain, v.RecordType(), record.Get(v).String())
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}

func (pb *Porkbun) addUpdateDomainRecord(ctx context.Context, domain ddns.Domain, recordType, ipAddr string) (bool, error) {
	var record PorkbunDomainQueryResponse
	// 获取当前域名信息
	err := pb.request(ctx,
		pb.apiURL+fmt.Sprintf("/dns/retrieveByNameType/%s/%s/%s", domain.DomainName, recordType, domain.SubDomain),
		&pb.apiKey,
		&record,
	)
	if err != nil {
		return false, errors.WithMessagef(err, "query %s record of %s", recordType, domain)
	}
	if record.PorkbunResponse == nil || record.Status != statusSuccess {
		return false, errors.Errorf("query %s record of %s failed: %s", recordType, domain, message(record.PorkbunResponse))
	}

	if len(record.Records) > 0 {
		// 存在，更新
		return pb.modify(ctx, &record, domain, recordType, ipAddr)
	}
	// 不存在，创建
	return true, pb.create(ctx, domain, recordType, ipAddr)
}

// 创建
func (pb *Porkbun) create(ctx context.Context, domain ddns.Domain, recordType, ipAddr string) error {
	var response PorkbunResponse
	err := pb.request(ctx,
		pb.apiURL+fmt.Sprintf("/dns/create/%s", domain.DomainName),
		&PorkbunDomainCreateOrUpdateVO{
			PorkbunApiKey: &pb.apiKey,
			PorkbunDomainRecord: &PorkbunDomainRecord{
				Name:    &domain.SubDomain,
				Type:    &recordType,
				Content: &ipAddr,
				Ttl:     &pb.ttl,
				Notes:   pb.notesPtr(),
			},
		},
		&response,
	)
	if err == nil && response.Status != statusSuccess {
		err = errors.New(message(&response))
	}
	if err != nil {
		return errors.WithMessagef(err, "create %s record of %s", recordType, domain)
	}
	pb.logger.Infof("新增域名解析 %s 成功！IP: %s", domain, ipAddr)
	return nil
}

// 修改
func (pb *Porkbun) modify(ctx context.Context, record *PorkbunDomainQueryResponse, domain ddns.Domain, recordType, ipAddr string) (bool, error) {
	// 相同不修改
	if c := record.Records[0].Content; c != nil && *c == ipAddr {
		pb.logger.Debugf("你的IP %s 没有变化, 域名 %s", ipAddr, domain)
		return false, nil
	}

	var response PorkbunResponse
	err := pb.request(ctx,
		pb.apiURL+fmt.Sprintf("/dns/editByNameType/%s/%s/%s", domain.DomainName, recordType, domain.SubDomain),
		&PorkbunDomainCreateOrUpdateVO{
			PorkbunApiKey: &pb.apiKey,
			PorkbunDomainRecord: &PorkbunDomainRecord{
				Content: &ipAddr,
				Ttl:     &pb.ttl,
				Notes:   pb.notesPtr(),
			},
		},
		&response,
	)
	if err == nil && response.Status != statusSuccess {
		err = errors.New(message(&response))
	}
	if err != nil {
		return false, errors.WithMessagef(err, "update %s record of %s", recordType, domain)
	}
	pb.logger.Infof("更新域名解析 %s 成功！IP: %s", domain, ipAddr)
	return true, nil
}

func (pb *Porkbun) notesPtr() *string {
	notes := pb.notes
	if notes == "" {
		notes = "Updated by ddnsd @ " + time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	}
	return &notes
}

// request 统一请求接口
func (pb *Porkbun) request(ctx context.Context, url string, data any, result any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pb.client.Do(req)
	return util.GetHTTPResponse(resp, url, err, result)
}

func message(r *PorkbunResponse) string {
	if r == nil {
		return "empty response"
	}
	if r.Message != "" {
		return r.Message
	}
	return "status " + r.Status
}
