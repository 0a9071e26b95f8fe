package main

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/config/parsing"
	"github.com/jxo-me/ddnsd/core/service"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/jxo-me/ddnsd/sdk/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager records what the app service asks of it without running anything.
type fakeManager struct {
	mu     sync.Mutex
	events []string
	added  []service.IDDNSService
	// gate, when set, holds Add until it is closed
	gate chan struct{}
}

func (m *fakeManager) Add(svc service.IDDNSService) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "add "+svc.String())
	m.added = append(m.added, svc)
}

func (m *fakeManager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "remove "+name)
}

func (m *fakeManager) Services() []service.IDDNSService {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.IDDNSService(nil), m.added...)
}

func (m *fakeManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "shutdown")
}

func (m *fakeManager) log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Name:     "home",
		Interval: time.Minute,
		Versions: []string{"v4"},
		Cache:    config.CacheConfig{Path: filepath.Join(t.TempDir(), "ddns.bin")},
		Source:   config.SourceConfig{Type: "static", Static: &config.StaticSourceConfig{IPv4: "203.0.113.9"}},
	}
}

func newTestAppService(t *testing.T, cfg config.Config) (*AppService, *fakeManager, *registry.DDNSRegistry) {
	t.Helper()
	manager := &fakeManager{}
	reg := new(registry.DDNSRegistry)
	s := NewAppService(nil, manager, reg, sdklogger.Nop())

	svc, err := parsing.ParseService(&cfg, nil)
	require.NoError(t, err)
	s.Apply(svc)
	return s, manager, reg
}

func TestConfigUpdateUnchangedIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	s, manager, reg := newTestAppService(t, cfg)
	running := reg.Get("home")

	s.handleConfigUpdate(cfg)
	assert.Equal(t, []string{"add home"}, manager.log())
	assert.Same(t, running, reg.Get("home"))
}

func TestConfigUpdateInvalidKeepsRunningService(t *testing.T) {
	cfg := testConfig(t)
	s, manager, reg := newTestAppService(t, cfg)
	running := reg.Get("home")

	broken := cfg
	broken.Source = config.SourceConfig{Type: "smoke-signals"}
	s.handleConfigUpdate(broken)

	assert.Equal(t, []string{"add home"}, manager.log())
	assert.Same(t, running, reg.Get("home"))
	assert.Equal(t, cfg.Hash(), reg.Get("home").Hash())
}

func TestConfigUpdateChangedReplacesService(t *testing.T) {
	cfg := testConfig(t)
	s, manager, reg := newTestAppService(t, cfg)

	next := cfg
	next.Interval = 2 * time.Minute
	s.handleConfigUpdate(next)

	assert.Equal(t, []string{"add home", "add home"}, manager.log())
	require.NotNil(t, reg.Get("home"))
	assert.Equal(t, next.Hash(), reg.Get("home").Hash())
}

func TestConfigUpdateRenamedReplacesOldService(t *testing.T) {
	cfg := testConfig(t)
	s, manager, reg := newTestAppService(t, cfg)

	renamed := cfg
	renamed.Name = "office"
	s.handleConfigUpdate(renamed)

	assert.Equal(t, []string{"add home", "remove home", "add office"}, manager.log())
	assert.False(t, reg.IsRegistered("home"))
	require.True(t, reg.IsRegistered("office"))
	assert.Len(t, reg.GetAll(), 1)
}

func TestShutdownWaitsForUpdateInProgress(t *testing.T) {
	cfg := testConfig(t)
	s, manager, _ := newTestAppService(t, cfg)
	require.NoError(t, s.Run())

	manager.gate = make(chan struct{})
	next := cfg
	next.Interval = 2 * time.Minute
	s.ConfigDidUpdate(next)

	done := make(chan struct{})
	go func() {
		_ = s.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned while an update was being applied")
	case <-time.After(50 * time.Millisecond):
	}
	close(manager.gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.Equal(t, []string{"add home", "add home", "shutdown"}, manager.log())

	// updates after shutdown are dropped
	s.ConfigDidUpdate(next)
	assert.Len(t, manager.log(), 3)
}

func TestShutdownWithoutRun(t *testing.T) {
	s, manager, reg := newTestAppService(t, testConfig(t))
	require.NoError(t, s.Shutdown())
	assert.Equal(t, []string{"add home", "shutdown"}, manager.log())
	assert.Empty(t, reg.GetAll())
}
