package iface

import (
	"context"
	"net/netip"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/source"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

const Code = "interface"

type Options struct {
	Name string
	// Match selects among several addresses: "@N" for the N-th, otherwise a
	// regular expression. Empty picks the first one.
	Match string
}

// Source reads the address straight from a local network interface.
type Source struct {
	name  string
	match string
	// lister is swapped in tests
	lister func() (ipv4, ipv6 []util.NetInterface, err error)
}

var _ source.ISource = (*Source)(nil)

func New(opts Options) (*Source, error) {
	if opts.Name == "" {
		return nil, errors.New("interface name is required")
	}
	if err := util.CheckMatch(opts.Match); err != nil {
		return nil, errors.WithMessagef(err, "interface %s", opts.Name)
	}
	return &Source{
		name:   opts.Name,
		match:  opts.Match,
		lister: util.GetNetInterface,
	}, nil
}

func (s *Source) String() string {
	return Code
}

func (s *Source) Fetch(_ context.Context, version ddns.IPVersion) (netip.Addr, error) {
	ipv4, ipv6, err := s.lister()
	if err != nil {
		return netip.Addr{}, err
	}

	var list []util.NetInterface
	switch version {
	case ddns.V4:
		list = ipv4
	case ddns.V6:
		list = ipv6
	default:
		return netip.Addr{}, errors.Wrapf(ddns.ErrInvalidVersion, "%d", int(version))
	}

	for _, ni := range list {
		if ni.Name != s.name {
			continue
		}
		addr, err := util.MatchAddr(ni.Address, s.match)
		if err != nil {
			return netip.Addr{}, errors.WithMessagef(err, "interface %s", s.name)
		}
		return addr, nil
	}
	return netip.Addr{}, errors.Errorf("interface %s has no global %s address", s.name, version)
}
