package parsing

import (
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/core/source"
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

func buildHTTPSource(cfg *config.SourceConfig, deps *Deps) (source.ISource, error) {
	opts := xhttp.Options{HTTP: deps.HTTP, Logger: deps.Logger}
	if cfg.HTTP != nil {
		opts.IPv4URLs = cfg.HTTP.IPv4
		opts.IPv6URLs = cfg.HTTP.IPv6
	}
	return xhttp.New(opts), nil
}

func buildSTUNSource(cfg *config.SourceConfig, deps *Deps) (source.ISource, error) {
	opts := stun.Options{Logger: deps.Logger}
	if cfg.STUN != nil {
		opts.Servers = cfg.STUN.Servers
		opts.Timeout = cfg.STUN.Timeout
	}
	for _, s := range opts.Servers {
		if _, err := stun.ParseServer(s); err != nil {
			return nil, err
		}
	}
	return stun.New(opts), nil
}

func buildDNSSource(cfg *config.SourceConfig, deps *Deps) (source.ISource, error) {
	opts := xdns.Options{Logger: deps.Logger}
	if cfg.DNS != nil {
		if q := cfg.DNS.IPv4; q != nil {
			opts.IPv4 = xdns.Query{Name: q.Name, Server: q.Server, Type: q.Type}
		}
		if q := cfg.DNS.IPv6; q != nil {
			opts.IPv6 = xdns.Query{Name: q.Name, Server: q.Server, Type: q.Type}
		}
		opts.Timeout = cfg.DNS.Timeout
	}
	return xdns.New(opts)
}

func buildInterfaceSource(cfg *config.SourceConfig, _ *Deps) (source.ISource, error) {
	if cfg.Interface == nil {
		return nil, errors.New("interface.name is required")
	}
	return iface.New(iface.Options{Name: cfg.Interface.Name, Match: cfg.Interface.Match})
}

func buildCmdSource(cfg *config.SourceConfig, _ *Deps) (source.ISource, error) {
	if cfg.Cmd == nil {
		return nil, errors.New("cmd.ipv4 or cmd.ipv6 is required")
	}
	return xcmd.New(xcmd.Options{IPv4: cfg.Cmd.IPv4, IPv6: cfg.Cmd.IPv6, Timeout: cfg.Cmd.Timeout})
}

func buildStaticSource(cfg *config.SourceConfig, _ *Deps) (source.ISource, error) {
	if cfg.Static == nil {
		return nil, errors.New("static.ipv4 or static.ipv6 is required")
	}
	return static.New(cfg.Static.IPv4, cfg.Static.IPv6)
}

func buildCloudflare(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return cloudflare.New(cloudflare.Options{
		APIToken: cfg.APIToken,
		Zone:     cfg.Zone,
		Domains:  cfg.Domains,
		TTL:      cfg.TTL,
		Proxied:  cfg.Proxied,
		Comment:  cfg.Comment,
		Client:   deps.Client,
		Logger:   deps.Logger,
	})
}

func buildPorkbun(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return porkbun.New(porkbun.Options{
		APIKey:       cfg.APIKey,
		SecretAPIKey: cfg.SecretAPIKey,
		APIURL:       cfg.APIURL,
		Domains:      cfg.Domains,
		TTL:          cfg.TTL,
		Notes:        cfg.Comment,
		Client:       deps.Client,
		Logger:       deps.Logger,
	})
}

func buildGoDaddy(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return godaddy.New(godaddy.Options{
		Key:     cfg.APIKey,
		Secret:  cfg.SecretAPIKey,
		APIURL:  cfg.APIURL,
		Domains: cfg.Domains,
		TTL:     cfg.TTL,
		Client:  deps.Client,
		Logger:  deps.Logger,
	})
}

func buildNameCheap(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return namecheap.New(namecheap.Options{
		Password: cfg.Password,
		APIURL:   cfg.APIURL,
		Domains:  cfg.Domains,
		Client:   deps.Client,
		Logger:   deps.Logger,
	})
}

func buildDynDNS(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return dyndns.New(dyndns.Options{
		Server:   cfg.Server,
		Username: cfg.Username,
		Password: cfg.Password,
		Hosts:    cfg.Domains,
		Client:   deps.Client,
		Logger:   deps.Logger,
	})
}

func buildCallback(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return callback.New(callback.Options{
		URL:     cfg.URL,
		Body:    cfg.Body,
		Headers: cfg.Headers,
		Domains: cfg.Domains,
		TTL:     cfg.TTL,
		Client:  deps.Client,
		Logger:  deps.Logger,
	})
}

func buildRedis(cfg *config.ProviderConfig, deps *Deps) (provider.IProvider, error) {
	return redis.New(redis.Options{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
		Logger:   deps.Logger,
	})
}
