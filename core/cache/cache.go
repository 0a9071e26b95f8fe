package cache

import (
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// ErrCorrupt is matched by every integrity failure an ICache reports.
var ErrCorrupt = errors.New("cache corrupt")

// ICache persists the last successfully applied record.
type ICache interface {
	// Init prepares the storage location; failure is a setup error.
	Init() error
	// Get returns ok=false without error when nothing has been stored yet.
	Get() (record ddns.Record, ok bool, err error)
	Set(record ddns.Record) error
}
