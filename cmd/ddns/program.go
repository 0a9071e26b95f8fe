package main

import (
	"context"
	"time"

	"github.com/judwhite/go-svc"
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/config/parsing"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/pkg/overwatch"
	"github.com/jxo-me/ddnsd/pkg/status"
	"github.com/jxo-me/ddnsd/pkg/watcher"
	"github.com/jxo-me/ddnsd/sdk/app"
	sdkcache "github.com/jxo-me/ddnsd/sdk/cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type program struct {
	configPath string
	cfg        *config.Config
	log        logger.ILogger
	zlog       *zerolog.Logger

	appService *AppService
	status     *status.Server
}

func (p *program) Init(env svc.Environment) error {
	p.log, p.zlog = loggers(p.cfg.Log)
	logger.SetDefault(p.log)
	if env.IsWindowsService() {
		p.log.Info("running as a windows service")
	}
	return nil
}

// Start builds the configured service and launches it. Everything that can
// only fail because of the setup happens here, so it surfaces as a non-zero
// exit instead of a log line.
func (p *program) Start() error {
	service, err := parsing.ParseService(p.cfg, p.log)
	if err != nil {
		return err
	}
	if err := sdkcache.New(p.cfg.Cache.Path).Init(); err != nil {
		return errors.Wrap(err, "init cache")
	}

	var configManager config.Manager
	if p.configPath != "" {
		f, err := watcher.NewFile()
		if err != nil {
			return errors.Wrap(err, "create config watcher")
		}
		m, err := config.NewFileManager(f, p.configPath, p.zlog)
		if err != nil {
			return errors.Wrap(err, "watch config file")
		}
		configManager = m
		p.zlog.Info().Msgf("monitoring config file at: %s", p.configPath)
	}

	serviceCallback := func(t string, name string, err error) {
		if err != nil {
			p.log.Errorf("%s service: %s encountered an error: %v", t, name, err)
		}
	}
	p.appService = NewAppService(configManager, overwatch.NewAppManager(serviceCallback), app.Runtime.DDNSRegistry(), p.log)
	p.appService.Apply(service)
	go func() {
		if err := p.appService.Run(); err != nil {
			p.log.Errorf("config watcher stopped: %v", err)
		}
	}()

	if p.cfg.Status != nil && p.cfg.Status.Listen != "" {
		p.status = status.NewServer(p.cfg.Status.Listen, app.Runtime.DDNSRegistry(), p.log)
		go func() {
			if err := p.status.Start(); err != nil {
				p.log.Error(err)
			}
		}()
	}
	return nil
}

func (p *program) Stop() error {
	if p.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.status.Shutdown(ctx); err != nil {
			p.log.Warnf("status endpoint shutdown: %v", err)
		}
	}
	if p.appService != nil {
		_ = p.appService.Shutdown()
	}
	p.log.Info("ddns shutdown")
	return nil
}
