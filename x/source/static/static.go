package static

import (
	"context"
	"net/netip"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/source"
	"github.com/pkg/errors"
)

const Code = "static"

// Source returns fixed addresses. Useful for tests and for hosts whose
// address never changes but whose records should still be kept in sync.
type Source struct {
	record ddns.Record
}

var _ source.ISource = (*Source)(nil)

func New(ipv4, ipv6 string) (*Source, error) {
	var record ddns.Record
	for _, f := range []struct {
		version ddns.IPVersion
		value   string
	}{
		{ddns.V4, ipv4},
		{ddns.V6, ipv6},
	} {
		if f.value == "" {
			continue
		}
		addr, err := netip.ParseAddr(f.value)
		if err != nil {
			return nil, errors.Wrapf(err, "static %s address", f.version)
		}
		if !f.version.Match(addr) {
			return nil, errors.Errorf("static %s address %s is of the wrong family", f.version, addr)
		}
		record.Set(f.version, addr)
	}
	if record.IsEmpty() {
		return nil, errors.New("static source needs at least one address")
	}
	return &Source{record: record}, nil
}

func (s *Source) String() string {
	return Code
}

func (s *Source) Fetch(_ context.Context, version ddns.IPVersion) (netip.Addr, error) {
	addr := s.record.Get(version)
	if !addr.IsValid() {
		return netip.Addr{}, errors.Errorf("no static %s address", version)
	}
	return addr, nil
}
