package cloudflare

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const (
	Code = "cloudflare"

	// automatic ttl
	defaultTTL = 1
)

type Options struct {
	APIToken string
	// Zone skips zone discovery when set.
	Zone    string
	Domains []string
	TTL     int
	Proxied bool
	Comment string
	// BaseURL overrides the api endpoint.
	BaseURL   string
	RateLimit float64
	Client    *http.Client
	Logger    logger.ILogger
}

type Cloudflare struct {
	api     *cloudflare.API
	zone    string
	domains []ddns.Domain
	ttl     int
	proxied bool
	comment string
	logger  logger.ILogger

	mu    sync.Mutex
	zones map[string]string // domain -> zone id
}

var _ provider.IProvider = (*Cloudflare)(nil)

func New(opts Options) (*Cloudflare, error) {
	if opts.APIToken == "" {
		return nil, errors.New("cloudflare: api_token is required")
	}
	if len(opts.Domains) == 0 {
		return nil, errors.New("cloudflare: at least one domain is required")
	}
	domains, err := ddns.ParseDomains(opts.Domains)
	if err != nil {
		return nil, errors.WithMessage(err, "cloudflare")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}

	var apiOpts []cloudflare.Option
	if opts.Client != nil {
		apiOpts = append(apiOpts, cloudflare.HTTPClient(opts.Client))
	}
	if opts.BaseURL != "" {
		apiOpts = append(apiOpts, cloudflare.BaseURL(opts.BaseURL))
	}
	if opts.RateLimit > 0 {
		apiOpts = append(apiOpts, cloudflare.UsingRateLimit(opts.RateLimit))
	}
	api, err := cloudflare.NewWithAPIToken(opts.APIToken, apiOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloudflare: create api client")
	}

	return &Cloudflare{
		api:     api,
		zone:    strings.TrimSuffix(strings.ToLower(opts.Zone), "."),
		domains: domains,
		ttl:     opts.TTL,
		proxied: opts.Proxied,
		comment: opts.Comment,
		logger:  opts.Logger.WithFields(map[string]any{"provider": Code}),
		zones:   make(map[string]string),
	}, nil
}

func (cf *Cloudflare) String() string {
	return Code
}

// Apply creates or updates an A/AAAA record per domain for every family in record.
func (cf *Cloudflare) Apply(ctx context.Context, record ddns.Record) (changed bool, err error) {
	for _, domain := range cf.domains {
		name := domain.String()
		zid, err := cf.zoneID(ctx, name)
		if err != nil {
			return changed, err
		}
		for _, v := range record.Versions() {
			c, err := cf.upsert(ctx, zid, name, v.RecordType(), record.Get(v).String())
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}

func (cf *Cloudflare) upsert(ctx context.Context, zid, name, recordType, content string) (bool, error) {
	rc := cloudflare.ZoneIdentifier(zid)
	records, _, err := cf.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: name,
		ResultInfo: cloudflare.ResultInfo{
			Page:    1,
			PerPage: 100,
		},
	})
	if err != nil {
		return false, errors.Wrapf(err, "list %s records of %s", recordType, name)
	}

	proxied := cf.proxied
	if len(records) == 0 {
		_, err := cf.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    recordType,
			Name:    name,
			Content: content,
			TTL:     cf.ttl,
			Proxied: &proxied,
			Comment: cf.comment,
		})
		if err != nil {
			return false, errors.Wrapf(err, "create %s record of %s", recordType, name)
		}
		cf.logger.Infof("created %s record %s -> %s", recordType, name, content)
		return true, nil
	}

	existing := records[0]
	if existing.Content == content && existing.TTL == cf.ttl && existing.Proxied != nil && *existing.Proxied == proxied {
		cf.logger.Debugf("%s record %s already points to %s", recordType, name, content)
		return false, nil
	}
	_, err = cf.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
		ID:      existing.ID,
		Type:    recordType,
		Name:    name,
		Content: content,
		TTL:     cf.ttl,
		Proxied: &proxied,
	})
	if err != nil {
		return false, errors.Wrapf(err, "update %s record of %s", recordType, name)
	}
	cf.logger.Infof("updated %s record %s: %s -> %s", recordType, name, existing.Content, content)
	return true, nil
}

// zoneID finds the zone of domain: the configured zone, otherwise the
// longest zone name that is a suffix of domain.
func (cf *Cloudflare) zoneID(ctx context.Context, domain string) (string, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if zid, ok := cf.zones[domain]; ok {
		return zid, nil
	}

	var filter []string
	if cf.zone != "" {
		filter = append(filter, cf.zone)
	}
	zones, err := cf.api.ListZones(ctx, filter...)
	if err != nil {
		return "", errors.Wrap(err, "list zones")
	}

	names := make(map[string]string, len(zones))
	for _, z := range zones {
		names[z.Name] = z.ID
	}
	zid := MatchZone(domain, names)
	if zid == "" {
		return "", errors.Errorf("no zone matches %s", domain)
	}
	cf.zones[domain] = zid
	return zid, nil
}

// MatchZone returns the id of the longest zone name that domain belongs to.
func MatchZone(domain string, zones map[string]string) (zid string) {
	longest := 0
	for name, id := range zones {
		name = strings.ToLower(name)
		if (domain == name || strings.HasSuffix(domain, "."+name)) && len(name) > longest {
			longest, zid = len(name), id
		}
	}
	return zid
}
