package http

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/source"
	"github.com/jxo-me/ddnsd/internal/util"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
)

const Code = "http"

var (
	DefaultIPv4URLs = []string{
		"https://api.ipify.org",
		"https://ipv4.seeip.org",
		"https://ipv4.icanhazip.com",
	}
	DefaultIPv6URLs = []string{
		"https://api6.ipify.org",
		"https://ipv6.seeip.org",
		"https://ipv6.icanhazip.com",
	}
)

type Options struct {
	IPv4URLs []string
	IPv6URLs []string
	// Clients per family; both default to clients pinned to tcp4/tcp6.
	IPv4Client *http.Client
	IPv6Client *http.Client
	HTTP       util.HTTPOptions
	Logger     logger.ILogger
}

// Source asks public echo services for the address they see.
type Source struct {
	urls    map[ddns.IPVersion][]string
	clients map[ddns.IPVersion]*http.Client
	logger  logger.ILogger
}

var _ source.ISource = (*Source)(nil)

func New(opts Options) *Source {
	if len(opts.IPv4URLs) == 0 {
		opts.IPv4URLs = DefaultIPv4URLs
	}
	if len(opts.IPv6URLs) == 0 {
		opts.IPv6URLs = DefaultIPv6URLs
	}
	if opts.IPv4Client == nil {
		opts.IPv4Client = util.CreateNoProxyHTTPClient("tcp4", opts.HTTP)
	}
	if opts.IPv6Client == nil {
		opts.IPv6Client = util.CreateNoProxyHTTPClient("tcp6", opts.HTTP)
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	return &Source{
		urls: map[ddns.IPVersion][]string{
			ddns.V4: opts.IPv4URLs,
			ddns.V6: opts.IPv6URLs,
		},
		clients: map[ddns.IPVersion]*http.Client{
			ddns.V4: opts.IPv4Client,
			ddns.V6: opts.IPv6Client,
		},
		logger: opts.Logger.WithFields(map[string]any{"source": Code}),
	}
}

func (s *Source) String() string {
	return Code
}

// Fetch tries each URL for version in order and returns the first usable answer.
func (s *Source) Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error) {
	client, ok := s.clients[version]
	if !ok {
		return netip.Addr{}, errors.Wrapf(ddns.ErrInvalidVersion, "%d", int(version))
	}

	var lastErr error
	for _, url := range s.urls[version] {
		addr, err := s.get(ctx, client, url, version)
		if err == nil {
			return addr, nil
		}
		if ctx.Err() != nil {
			return netip.Addr{}, ctx.Err()
		}
		s.logger.Debugf("Failed to get %s address from %s: %v", version, url, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no url configured")
	}
	return netip.Addr{}, errors.WithMessagef(lastErr, "fetch %s address via http", version)
}

func (s *Source) get(ctx context.Context, client *http.Client, url string, version ddns.IPVersion) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "create request for %s", url)
	}
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := client.Do(req)
	body, err := util.GetHTTPResponseOrg(resp, url, err)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, ok := util.FindAddr(string(body), version)
	if !ok {
		return netip.Addr{}, errors.Errorf("%s returned no %s address: %q", url, version, truncate(body))
	}
	return addr, nil
}

func truncate(b []byte) string {
	const n = 64
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
