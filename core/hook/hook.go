package hook

import (
	"context"

	"github.com/jxo-me/ddnsd/core/service"
)

// IHook is notified after every tick that detected a change.
type IHook interface {
	String() string
	ExecHook(ctx context.Context, result *service.TickResult) error
}
