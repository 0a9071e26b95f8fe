package stun

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/source"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pion/stun"
	"github.com/pkg/errors"
)

const (
	Code = "stun"

	defaultPort    = "3478"
	defaultTimeout = 5 * time.Second
)

var DefaultServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun.cloudflare.com:3478",
}

type Options struct {
	Servers []string
	Timeout time.Duration
	Logger  logger.ILogger
}

// Source learns the public address from the XOR-MAPPED-ADDRESS of a STUN
// binding response.
type Source struct {
	servers []string
	timeout time.Duration
	logger  logger.ILogger
}

var _ source.ISource = (*Source)(nil)

func New(opts Options) *Source {
	if len(opts.Servers) == 0 {
		opts.Servers = DefaultServers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	return &Source{
		servers: opts.Servers,
		timeout: opts.Timeout,
		logger:  opts.Logger.WithFields(map[string]any{"source": Code}),
	}
}

func (s *Source) String() string {
	return Code
}

func (s *Source) Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error) {
	if version != ddns.V4 && version != ddns.V6 {
		return netip.Addr{}, errors.Wrapf(ddns.ErrInvalidVersion, "%d", int(version))
	}

	var lastErr error
	for _, server := range s.servers {
		addr, err := s.query(ctx, server, version)
		if err == nil {
			return addr, nil
		}
		if ctx.Err() != nil {
			return netip.Addr{}, ctx.Err()
		}
		s.logger.Debugf("STUN request to %s failed: %v", server, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no server configured")
	}
	return netip.Addr{}, errors.WithMessagef(lastErr, "fetch %s address via stun", version)
}

func (s *Source) query(ctx context.Context, server string, version ddns.IPVersion) (netip.Addr, error) {
	hostport, err := ParseServer(server)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp"+version.Network(), hostport)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "dial %s", hostport)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.Write(req.Raw); err != nil {
		return netip.Addr{}, errors.Wrapf(err, "send binding request to %s", hostport)
	}

	buf := make([]byte, 1500)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return netip.Addr{}, errors.Wrapf(err, "read binding response from %s", hostport)
		}
		res := new(stun.Message)
		res.Raw = append([]byte(nil), buf[:n]...)
		if err := res.Decode(); err != nil {
			continue
		}
		// stray datagrams from an earlier request are skipped
		if res.TransactionID != req.TransactionID {
			continue
		}
		if res.Type != stun.BindingSuccess {
			return netip.Addr{}, errors.Errorf("%s answered %s", hostport, res.Type)
		}
		return mappedAddr(res)
	}
}

func mappedAddr(res *stun.Message) (netip.Addr, error) {
	var ip net.IP
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		ip = xorAddr.IP
	} else {
		// RFC 3489 servers only send MAPPED-ADDRESS
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(res); err != nil {
			return netip.Addr{}, errors.Wrap(err, "binding response has no mapped address")
		}
		ip = mapped.IP
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, errors.Errorf("invalid mapped address %v", ip)
	}
	return addr.Unmap(), nil
}

// ParseServer accepts "stun:host:port", "host:port" and "host".
func ParseServer(server string) (string, error) {
	server = strings.TrimSpace(server)
	server = strings.TrimPrefix(server, "stun:")
	server = strings.TrimPrefix(server, "//")
	if server == "" {
		return "", errors.New("empty stun server")
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server, nil
	}
	host := strings.TrimSuffix(strings.TrimPrefix(server, "["), "]")
	if strings.ContainsAny(host, "[]") {
		return "", errors.Errorf("invalid stun server %q", server)
	}
	return net.JoinHostPort(host, defaultPort), nil
}
