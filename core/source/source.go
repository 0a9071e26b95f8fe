package source

import (
	"context"
	"net/netip"

	"github.com/jxo-me/ddnsd/core/ddns"
)

// ISource discovers the current address of one family.
type ISource interface {
	String() string
	Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error)
}

// SourceFunc adapts a function to ISource.
type SourceFunc func(ctx context.Context, version ddns.IPVersion) (netip.Addr, error)

func (f SourceFunc) String() string {
	return "func"
}

func (f SourceFunc) Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error) {
	return f(ctx, version)
}
