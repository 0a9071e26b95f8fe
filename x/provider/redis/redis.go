package redis

import (
	"context"
	"strings"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
	"github.com/redis/rueidis"
)

const (
	Code = "redis"

	DefaultPrefix = "ddns:"
)

type Options struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Prefix   string
	Logger   logger.ILogger
}

func (o *Options) validate() error {
	if len(o.Addrs) == 0 {
		return errors.New("redis: at least one address is required")
	}
	for _, a := range o.Addrs {
		if strings.TrimSpace(a) == "" {
			return errors.New("redis: empty address")
		}
	}
	if o.DB < 0 {
		return errors.Errorf("redis: invalid db %d", o.DB)
	}
	return nil
}

// Redis publishes the record into redis for service discovery consumers.
// Each family is kept under its own key and every change is announced on
// the events channel.
type Redis struct {
	client rueidis.Client
	prefix string
	logger logger.ILogger
}

var _ provider.IProvider = (*Redis)(nil)

func New(opts Options) (*Redis, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = sdklogger.Nop()
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: opts.Addrs,
		Username:    opts.Username,
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, errors.Wrap(err, "redis: connect")
	}
	return &Redis{
		client: client,
		prefix: opts.Prefix,
		logger: opts.Logger.WithFields(map[string]any{"provider": Code}),
	}, nil
}

func (r *Redis) String() string {
	return Code
}

func (r *Redis) Key(version ddns.IPVersion) string {
	return r.prefix + "ip" + version.String()
}

func (r *Redis) Channel() string {
	return r.prefix + "events"
}

func (r *Redis) Close() {
	r.client.Close()
}

func (r *Redis) Apply(ctx context.Context, record ddns.Record) (bool, error) {
	changed := false
	for _, v := range []ddns.IPVersion{ddns.V4, ddns.V6} {
		key := r.Key(v)
		current, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).ToString()
		if err != nil && !rueidis.IsRedisNil(err) {
			return changed, errors.Wrapf(err, "get %s", key)
		}
		exists := err == nil

		addr := record.Get(v)
		switch {
		case addr.IsValid() && (!exists || current != addr.String()):
			err = r.client.Do(ctx, r.client.B().Set().Key(key).Value(addr.String()).Build()).Error()
			if err != nil {
				return changed, errors.Wrapf(err, "set %s", key)
			}
			r.logger.Infof("%s = %s", key, addr)
			changed = true
		case !addr.IsValid() && exists:
			err = r.client.Do(ctx, r.client.B().Del().Key(key).Build()).Error()
			if err != nil {
				return changed, errors.Wrapf(err, "del %s", key)
			}
			r.logger.Infof("%s removed", key)
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	err := r.client.Do(ctx, r.client.B().Publish().Channel(r.Channel()).Message(record.String()).Build()).Error()
	if err != nil {
		return true, errors.Wrapf(err, "publish %s", r.Channel())
	}
	return true, nil
}
