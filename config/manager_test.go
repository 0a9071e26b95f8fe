package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jxo-me/ddnsd/pkg/watcher"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	configs []Config
}

func (n *mockNotifier) ConfigDidUpdate(c Config) {
	n.configs = append(n.configs, c)
}

type mockFileWatcher struct {
	path     string
	notifier watcher.Notification
	ready    chan struct{}
}

func (w *mockFileWatcher) Start(n watcher.Notification) {
	w.notifier = n
	w.ready <- struct{}{}
}

func (w *mockFileWatcher) Add(string) error {
	return nil
}

func (w *mockFileWatcher) Shutdown() {

}

func (w *mockFileWatcher) TriggerChange() {
	w.notifier.WatcherItemDidChange(w.path)
}

func TestConfigChanged(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filePath, nil, 0o600))

	c := &Config{
		Providers: []ProviderConfig{
			{
				Type:     "cloudflare",
				APIToken: "token",
				TTL:      600,
			},
		},
	}
	var readErr error
	configRead := func(configPath string, log *zerolog.Logger) (Config, error) {
		return *c, readErr
	}
	wait := make(chan struct{})
	w := &mockFileWatcher{path: filePath, ready: wait}

	log := zerolog.Nop()

	service, err := NewFileManager(w, filePath, &log)
	service.ReadConfig = configRead
	assert.NoError(t, err)

	n := &mockNotifier{}
	go func() {
		_ = service.Start(n)
	}()

	<-wait
	c.Providers = append(c.Providers, ProviderConfig{Type: "porkbun", TTL: 500})
	w.TriggerChange()

	// a broken file keeps the running config
	readErr = errors.New("broken")
	w.TriggerChange()

	service.Shutdown()

	assert.Len(t, n.configs, 2, "did not get 2 config updates as expected")
	assert.Len(t, n.configs[0].Providers, 1, "not the amount of providers expected")
	assert.Len(t, n.configs[1].Providers, 2, "not the amount of providers expected")

	assert.Equal(t, n.configs[0].Providers[0].Type, c.Providers[0].Type, "provider type don't match")
	assert.Equal(t, n.configs[1].Providers[0].Type, c.Providers[0].Type, "provider type don't match")
	assert.Equal(t, n.configs[1].Providers[1].Type, c.Providers[1].Type, "provider type don't match")
}

func TestStartFailsOnInvalidConfig(t *testing.T) {
	log := zerolog.Nop()
	service, err := NewFileManager(&mockFileWatcher{ready: make(chan struct{}, 1)}, "config.yaml", &log)
	require.NoError(t, err)
	service.ReadConfig = func(string, *zerolog.Logger) (Config, error) {
		return Config{}, errors.New("broken")
	}
	assert.Error(t, service.Start(&mockNotifier{}))
}
