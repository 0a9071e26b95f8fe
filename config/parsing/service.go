package parsing

import (
	"net/http"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/hook"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/core/source"
	"github.com/jxo-me/ddnsd/internal/util"
	sdkcache "github.com/jxo-me/ddnsd/sdk/cache"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	sdkservice "github.com/jxo-me/ddnsd/sdk/service"
	xhook "github.com/jxo-me/ddnsd/x/hook"
	"github.com/jxo-me/ddnsd/x/provider/callback"
	"github.com/jxo-me/ddnsd/x/provider/cloudflare"
	"github.com/jxo-me/ddnsd/x/provider/dyndns"
	"github.com/jxo-me/ddnsd/x/provider/godaddy"
	"github.com/jxo-me/ddnsd/x/provider/namecheap"
	"github.com/jxo-me/ddnsd/x/provider/porkbun"
	"github.com/jxo-me/ddnsd/x/provider/redis"
	xcmd "github.com/jxo-me/ddnsd/x/source/cmd"
	xdns "github.com/jxo-me/ddnsd/x/source/dns"
	xhttp "github.com/jxo-me/ddnsd/x/source/http"
	"github.com/jxo-me/ddnsd/x/source/iface"
	"github.com/jxo-me/ddnsd/x/source/static"
	"github.com/jxo-me/ddnsd/x/source/stun"
	"github.com/pkg/errors"
)

var (
	ErrSourceNotSupported   = errors.New("source not supported")
	ErrProviderNotSupported = errors.New("provider not supported")
)

// Deps are shared by everything built from one config.
type Deps struct {
	HTTP   util.HTTPOptions
	Client *http.Client
	Logger logger.ILogger
}

// NewDeps builds the http client shared by every source, provider and hook.
func NewDeps(cfg *config.Config, log logger.ILogger) *Deps {
	if log == nil {
		log = sdklogger.Nop()
	}
	opts := util.HTTPOptions{
		Timeout:        cfg.HTTP.Timeout,
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		RetryMax:       cfg.HTTP.RetryMax,
		Logger:         log,
	}
	return &Deps{
		HTTP:   opts,
		Client: util.CreateHTTPClient(opts),
		Logger: log,
	}
}

type SourceBuilder func(cfg *config.SourceConfig, deps *Deps) (source.ISource, error)

type ProviderBuilder func(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error)

var (
	Sources = map[string]SourceBuilder{
		xhttp.Code:  buildHTTPSource,
		stun.Code:   buildSTUNSource,
		xdns.Code:   buildDNSSource,
		iface.Code:  buildInterfaceSource,
		xcmd.Code:   buildCmdSource,
		static.Code: buildStaticSource,
	}
	Providers = map[string]ProviderBuilder{
		cloudflare.Code: buildCloudflare,
		porkbun.Code:    buildPorkbun,
		godaddy.Code:    buildGoDaddy,
		namecheap.Code:  buildNameCheap,
		dyndns.Code:     buildDynDNS,
		callback.Code:   buildCallback,
		redis.Code:      buildRedis,
	}
)

func ParseSource(cfg *config.SourceConfig, deps *Deps) (source.ISource, error) {
	build, ok := Sources[cfg.Type]
	if !ok {
		return nil, errors.Wrap(ErrSourceNotSupported, cfg.Type)
	}
	src, err := build(cfg, deps)
	if err != nil {
		return nil, errors.WithMessagef(err, "source %s", cfg.Type)
	}
	return src, nil
}

func ParseProvider(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	build, ok := Providers[cfg.Type]
	if !ok {
		return nil, errors.Wrap(ErrProviderNotSupported, cfg.Type)
	}
	p, err := build(cfg, deps)
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %s", cfg)
	}
	if cfg.Name != "" && cfg.Name != p.String() {
		p = &named{IProvider: p, name: cfg.Name}
	}
	return p, nil
}

func ParseHooks(cfg *config.Config, deps *Deps) []hook.IHook {
	var hooks []hook.IHook
	if cfg.Webhook != nil && cfg.Webhook.URL != "" {
		hooks = append(hooks, xhook.NewHook(cfg.Webhook.URL, cfg.Webhook.RequestBody, cfg.Webhook.Headers, deps.Client, deps.Logger))
	}
	return hooks
}

// ParseService builds the orchestrator described by cfg. Nothing is started.
func ParseService(cfg *config.Config, log logger.ILogger) (*sdkservice.DDNSService, error) {
	if log == nil {
		log = sdklogger.Nop()
	}
	deps := NewDeps(cfg, log)

	versions, err := cfg.IPVersions()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.Cache.FileMode()
	if err != nil {
		return nil, err
	}
	src, err := ParseSource(&cfg.Source, deps)
	if err != nil {
		return nil, err
	}

	var closers []func()
	providers := make([]provider.IProvider, 0, len(cfg.Providers))
	for i := range cfg.Providers {
		p, err := ParseProvider(&cfg.Providers[i], deps)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		if c, ok := unwrap(p).(interface{ Close() }); ok {
			closers = append(closers, c.Close)
		}
		providers = append(providers, p)
	}

	o, err := sdkservice.New(sdkservice.Options{
		Name:      cfg.Name,
		Interval:  cfg.Interval,
		Versions:  versions,
		Source:    src,
		Providers: providers,
		Hooks:     ParseHooks(cfg, deps),
		Cache:     sdkcache.New(cfg.Cache.Path, sdkcache.WithFileMode(mode)),
		DryRun:    cfg.DryRun,
		Logger:    log,
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	svc := sdkservice.NewDDNS(o, cfg.Hash(), log)
	for _, c := range closers {
		svc.OnStop(c)
	}
	return svc, nil
}

// named reports a configured name instead of the provider type, so two
// providers of the same type can be told apart.
type named struct {
	provider.IProvider
	name string
}

func (n *named) String() string {
	return n.name
}

func unwrap(p provider.IProvider) provider.IProvider {
	if n, ok := p.(*named); ok {
		return n.IProvider
	}
	return p
}
