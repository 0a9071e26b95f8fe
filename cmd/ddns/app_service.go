package main

import (
	"sync"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/config/parsing"
	"github.com/jxo-me/ddnsd/core/logger"
	reg "github.com/jxo-me/ddnsd/core/registry"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/pkg/overwatch"
)

// AppService is the main service that runs when no command lines flags are passed to ddns
// it manages all the running services such as the orchestrator and the config watcher
type AppService struct {
	configManager    config.Manager
	serviceManager   overwatch.Manager
	registry         reg.IRegistry[service.IDDNSService]
	shutdownC        chan struct{}
	configUpdateChan chan config.Config
	log              logger.ILogger

	loopOnce sync.Once
	loopDone chan struct{}
}

// NewAppService creates a new AppService with needed supporting services.
// configManager may be nil when there is no config file to watch.
func NewAppService(configManager config.Manager, serviceManager overwatch.Manager, registry reg.IRegistry[service.IDDNSService], log logger.ILogger) *AppService {
	return &AppService{
		configManager:    configManager,
		serviceManager:   serviceManager,
		registry:         registry,
		shutdownC:        make(chan struct{}),
		configUpdateChan: make(chan config.Config),
		log:              log,
		loopDone:         make(chan struct{}),
	}
}

// Run starts the run loop to handle config updates and run the services.
// It blocks while the config file is being watched.
func (s *AppService) Run() error {
	s.loopOnce.Do(func() {
		go s.actionLoop()
	})
	if s.configManager == nil {
		return nil
	}
	return s.configManager.Start(s)
}

// Shutdown kills all the running services
func (s *AppService) Shutdown() error {
	if s.configManager != nil {
		s.configManager.Shutdown()
	}
	close(s.shutdownC)
	// an update being applied must land before the services are stopped
	s.loopOnce.Do(func() {
		close(s.loopDone)
	})
	<-s.loopDone
	s.serviceManager.Shutdown()
	for name := range s.registry.GetAll() {
		s.registry.Unregister(name)
	}
	return nil
}

// ConfigDidUpdate is a delegate notification from the config manager
// it is trigger when the config file has been updated and now the service needs
// to update its services accordingly
func (s *AppService) ConfigDidUpdate(c config.Config) {
	select {
	case s.configUpdateChan <- c:
	case <-s.shutdownC:
	}
}

// Apply replaces the running service with svc unless an identical one is
// already running.
func (s *AppService) Apply(svc service.IDDNSService) {
	// a renamed service replaces the old one
	for name := range s.registry.GetAll() {
		if name != svc.String() {
			s.log.Infof("service %s removed from config", name)
			s.serviceManager.Remove(name)
			s.registry.Unregister(name)
		}
	}
	s.registry.Unregister(svc.String())
	_ = s.registry.Register(svc.String(), svc)
	s.serviceManager.Add(svc)
}

// actionLoop handles the actions from running processes
func (s *AppService) actionLoop() {
	defer close(s.loopDone)
	for {
		select {
		case c := <-s.configUpdateChan:
			s.handleConfigUpdate(c)
		case <-s.shutdownC:
			return
		}
	}
}

func (s *AppService) handleConfigUpdate(c config.Config) {
	if running := s.registry.Get(c.Name); running != nil && running.Hash() == c.Hash() {
		s.log.Debugf("config of service %s unchanged", c.Name)
		return
	}

	// an invalid config keeps the running service
	svc, err := parsing.ParseService(&c, s.log)
	if err != nil {
		s.log.Errorf("failed to apply new config, keeping the running service: %v", err)
		return
	}
	s.log.Infof("applying new config for service %s", svc)
	s.Apply(svc)
}
