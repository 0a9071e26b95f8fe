package provider

import (
	"context"

	"github.com/jxo-me/ddnsd/core/ddns"
)

// IProvider publishes an address record to a DNS/DDNS service.
// Apply must be idempotent: a record may be delivered again after a partially failed tick.
// The returned bool reports whether anything was actually changed.
type IProvider interface {
	String() string
	Apply(ctx context.Context, record ddns.Record) (bool, error)
}
