package dns

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/source"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

const (
	Code = "dns"

	defaultTimeout = 5 * time.Second
)

// Query names the record that reflects the client address back.
type Query struct {
	Name   string
	Server string
	// Type is A, AAAA or TXT; empty picks the address type of the family.
	Type string
}

var (
	DefaultIPv4Query = Query{Name: "myip.opendns.com", Server: "resolver1.opendns.com:53"}
	DefaultIPv6Query = Query{Name: "myip.opendns.com", Server: "resolver1.ipv6-sandbox.opendns.com:53"}
)

type Options struct {
	IPv4    Query
	IPv6    Query
	Timeout time.Duration
	Logger  logger.ILogger
}

// Source asks a resolver that answers with the address of the querier, the
// way OpenDNS and Google's o-o.myaddr do.
type Source struct {
	queries map[ddns.IPVersion]Query
	timeout time.Duration
	logger  logger.ILogger
}

var _ source.ISource = (*Source)(nil)

func New(opts Options) (*Source, error) {
	if opts.IPv4.Name == "" {
		opts.IPv4 = DefaultIPv4Query
	}
	if opts.IPv6.Name == "" {
		opts.IPv6 = DefaultIPv6Query
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	for _, q := range []Query{opts.IPv4, opts.IPv6} {
		if q.Server == "" {
			return nil, errors.Errorf("dns query %s: server is required", q.Name)
		}
		switch strings.ToUpper(q.Type) {
		case "", "A", "AAAA", "TXT":
		default:
			return nil, errors.Errorf("dns query %s: unsupported type %q", q.Name, q.Type)
		}
	}
	return &Source{
		queries: map[ddns.IPVersion]Query{
			ddns.V4: opts.IPv4,
			ddns.V6: opts.IPv6,
		},
		timeout: opts.Timeout,
		logger:  opts.Logger.WithFields(map[string]any{"source": Code}),
	}, nil
}

func (s *Source) String() string {
	return Code
}

func (s *Source) Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error) {
	q, ok := s.queries[version]
	if !ok {
		return netip.Addr{}, errors.Wrapf(ddns.ErrInvalidVersion, "%d", int(version))
	}

	qtype := dns.TypeA
	switch strings.ToUpper(q.Type) {
	case "TXT":
		qtype = dns.TypeTXT
	case "AAAA":
		qtype = dns.TypeAAAA
	case "A":
	default:
		if version == ddns.V6 {
			qtype = dns.TypeAAAA
		}
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(q.Name), qtype)
	m.RecursionDesired = true

	// the family of the transport decides which address the resolver sees
	c := &dns.Client{Net: "udp" + version.Network(), Timeout: s.timeout}
	r, _, err := c.ExchangeContext(ctx, m, q.Server)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "query %s @%s", q.Name, q.Server)
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, errors.Errorf("query %s @%s: %s", q.Name, q.Server, dns.RcodeToString[r.Rcode])
	}

	for _, rr := range r.Answer {
		var candidates []string
		switch rr := rr.(type) {
		case *dns.A:
			candidates = []string{rr.A.String()}
		case *dns.AAAA:
			candidates = []string{rr.AAAA.String()}
		case *dns.TXT:
			candidates = rr.Txt
		}
		for _, v := range candidates {
			addr, err := netip.ParseAddr(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			addr = addr.Unmap()
			if version.Match(addr) {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, errors.Errorf("query %s @%s: no %s address in answer", q.Name, q.Server, version)
}
