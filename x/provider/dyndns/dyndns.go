package dyndns

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
	Code = "dyndns"

	DefaultServer = "https://members.dyndns.org"
	userAgent     = "ddnsd/1.0"
)

type Options struct {
	Server   string
	Username string
	Password string
	Hosts    []string
	Client   *http.Client
	Logger   logger.ILogger
}

// DynDNS speaks the dyndns2 update protocol, which most registrars and
// dynamic DNS services implement.
type DynDNS struct {
	server   string
	username string
	password string
	hosts    []string
	client   *http.Client
	logger   logger.ILogger
}

var _ provider.IProvider = (*DynDNS)(nil)

func New(opts Options) (*DynDNS, error) {
	if opts.Server == "" {
		opts.Server = DefaultServer
	}
	if _, err := url.Parse(opts.Server); err != nil {
		return nil, errors.Wrap(err, "dyndns: invalid server")
	}
	if opts.Username == "" {
		return nil, errors.New("dyndns: username is required")
	}
	if len(opts.Hosts) == 0 {
		return nil, errors.New("dyndns: at least one host is required")
	}
	hosts := make([]string, 0, len(opts.Hosts))
	for _, h := range opts.Hosts {
		d, err := ddns.ParseDomain(h)
		if err != nil {
			return nil, errors.WithMessage(err, "dyndns")
		}
		hosts = append(hosts, d.String())
	}
	if opts.Client == nil {
		opts.Client = util.CreateHTTPClient(util.HTTPOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	return &DynDNS{
		server:   strings.TrimSuffix(opts.Server, "/"),
		username: opts.Username,
		password: opts.Password,
		hosts:    hosts,
		client:   opts.Client,
		logger:   opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (d *DynDNS) String() string {
	return Code
}

// Apply sends one update carrying every host and every present address.
// "good" means the record changed, "nochg" that it already matched.
func (d *DynDNS) Apply(ctx context.Context, record ddns.Record) (bool, error) {
	var ips []string
	for _, addr := range record.Addrs() {
		ips = append(ips, addr.String())
	}
	q := url.Values{}
	q.Set("hostname", strings.Join(d.hosts, ","))
	q.Set("myip", strings.Join(ips, ","))
	requestURL := d.server + "/nic/update?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, errors.Wrap(err, "create request")
	}
	req.SetBasicAuth(d.username, d.password)
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	body, err := util.GetHTTPResponseOrg(resp, d.server+"/nic/update", err)
	if err != nil {
		return false, err
	}
	return d.parse(string(body))
}

// parse checks one result line per host.
func (d *DynDNS) parse(body string) (changed bool, err error) {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		host := ""
		if i < len(d.hosts) {
			host = d.hosts[i]
		}
		switch {
		case strings.HasPrefix(line, "good"):
			d.logger.Infof("%s updated: %s", host, line)
			changed = true
		case strings.HasPrefix(line, "nochg"):
			d.logger.Debugf("%s unchanged: %s", host, line)
		default:
			return changed, errors.Errorf("update %s: %q", host, line)
		}
	}
	return changed, nil
}
