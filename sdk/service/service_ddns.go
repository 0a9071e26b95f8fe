package service

import (
	"sync"

	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/service"
)

// DDNSService adapts an Orchestrator to the blocking Start/Stop contract the
// overwatch manager expects.
type DDNSService struct {
	*Orchestrator
	hash   string
	logger logger.ILogger

	mu      sync.Mutex
	cleanup []func()
}

var _ service.IDDNSService = (*DDNSService)(nil)

// NewDDNS wraps o. hash identifies the configuration o was built from, so an
// unchanged configuration is not restarted on reload.
func NewDDNS(o *Orchestrator, hash string, log logger.ILogger) *DDNSService {
	return &DDNSService{
		Orchestrator: o,
		hash:         hash,
		logger:       log,
	}
}

func (s *DDNSService) Hash() string {
	return s.hash
}

// OnStop registers fn to run once the orchestrator has drained.
func (s *DDNSService) OnStop(fn func()) {
	s.mu.Lock()
	s.cleanup = append(s.cleanup, fn)
	s.mu.Unlock()
}

// Start runs the orchestrator and blocks until it has stopped.
func (s *DDNSService) Start() error {
	if err := s.Orchestrator.Start(); err != nil {
		return err
	}
	return s.Orchestrator.Wait()
}

// Stop requests shutdown and waits for the in-flight tick to drain.
func (s *DDNSService) Stop() error {
	s.Orchestrator.Stop()
	err := s.Orchestrator.Wait()

	s.mu.Lock()
	cleanup := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()
	for _, fn := range cleanup {
		fn()
	}

	if s.logger != nil {
		s.logger.Debugf("%s DDNS service has been stopped!", s.String())
	}
	return err
}
