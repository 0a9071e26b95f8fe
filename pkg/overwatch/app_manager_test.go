package overwatch

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	name     string
	hash     string
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
	stopC   chan struct{}
	once    sync.Once
}

func newMockService(name, hash string) *mockService {
	return &mockService{name: name, hash: hash, stopC: make(chan struct{})}
}

func (s *mockService) String() string { return s.name }

func (s *mockService) Hash() string { return s.hash }

func (s *mockService) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopC
	return nil
}

func (s *mockService) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.stopC) })
	return nil
}

func (s *mockService) state() (started, stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}

func (s *mockService) isStarted() bool {
	started, _ := s.state()
	return started
}

func TestManagerAddAndReplace(t *testing.T) {
	m := NewAppManager(nil)

	first := newMockService("home", "a")
	m.Add(first)
	assert.Eventually(t, first.isStarted, time.Second, 5*time.Millisecond)

	// same hash: the running service is kept
	m.Add(newMockService("home", "a"))
	_, stopped := first.state()
	assert.False(t, stopped)
	require.Len(t, m.Services(), 1)
	assert.Same(t, first, m.Services()[0])

	second := newMockService("home", "b")
	m.Add(second)
	_, stopped = first.state()
	assert.True(t, stopped, "replaced service must be stopped")
	assert.Eventually(t, second.isStarted, time.Second, 5*time.Millisecond)
	assert.Same(t, second, m.Services()[0])

	m.Shutdown()
	_, stopped = second.state()
	assert.True(t, stopped)
	assert.Empty(t, m.Services())
}

func TestManagerRemove(t *testing.T) {
	m := NewAppManager(nil)
	a, b := newMockService("a", "1"), newMockService("b", "1")
	m.Add(b)
	m.Add(a)

	services := m.Services()
	require.Len(t, services, 2)
	assert.Equal(t, "a", services[0].String())

	m.Remove("a")
	_, stopped := a.state()
	assert.True(t, stopped)
	assert.Len(t, m.Services(), 1)

	m.Remove("missing")
	m.Shutdown()
}

func TestManagerCallback(t *testing.T) {
	type call struct {
		typ, name string
		err       error
	}
	calls := make(chan call, 1)
	m := NewAppManager(func(typ, name string, err error) {
		calls <- call{typ, name, err}
	})

	svc := newMockService("broken", "1")
	svc.startErr = errors.New("setup failed")
	m.Add(svc)

	select {
	case c := <-calls:
		assert.Equal(t, "ddns", c.typ)
		assert.Equal(t, "broken", c.name)
		assert.EqualError(t, c.err, "setup failed")
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	m.Shutdown()
}

func TestManagerAddAfterShutdown(t *testing.T) {
	m := NewAppManager(nil)
	m.Shutdown()

	late := newMockService("home", "a")
	m.Add(late)
	assert.False(t, late.isStarted())
	assert.Empty(t, m.Services())

	// nothing was started, so a second shutdown returns at once
	m.Shutdown()
}
