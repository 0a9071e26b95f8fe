package status

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/sdk/registry"
	sdksvc "github.com/jxo-me/ddnsd/sdk/service"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	status sdksvc.Status
	cached ddns.Record
	err    error
}

func (f *fakeService) String() string { return f.status.Name }
func (f *fakeService) Hash() string   { return "" }
func (f *fakeService) Start() error   { return nil }
func (f *fakeService) Stop() error    { return nil }

func (f *fakeService) Status() sdksvc.Status { return f.status }

func (f *fakeService) Cached() (ddns.Record, bool, error) {
	if f.err != nil {
		return ddns.Record{}, false, f.err
	}
	return f.cached, f.cached != ddns.Record{}, nil
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := NewServer("127.0.0.1:0", new(registry.DDNSRegistry), nil)
	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestStatus(t *testing.T) {
	services := new(registry.DDNSRegistry)
	v4 := netip.MustParseAddr("203.0.113.9")
	home := &fakeService{
		status: sdksvc.Status{
			Name:     "home",
			Running:  true,
			Interval: 30 * time.Second,
			Last: &service.TickResult{
				ID:       "tick-1",
				Outcome:  service.OutcomeFailed,
				Record:   ddns.Record{V4: v4},
				CacheHit: true,
				Previous: ddns.Record{V4: netip.MustParseAddr("192.0.2.1")},
				Providers: []service.ProviderResult{
					{Provider: "cloudflare", Changed: true},
					{Provider: "porkbun", Err: errors.New("boom")},
				},
				Err: errors.New("1 of 2 provider(s) failed"),
			},
		},
		cached: ddns.Record{V4: netip.MustParseAddr("192.0.2.1")},
	}
	broken := &fakeService{
		status: sdksvc.Status{Name: "broken", DryRun: true, Interval: time.Minute},
		err:    errors.New("permission denied"),
	}
	require.NoError(t, services.Register(home.String(), home))
	require.NoError(t, services.Register(broken.String(), broken))

	w := get(t, NewServer("127.0.0.1:0", services, nil), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Services []ServiceView `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Services, 2)

	b := body.Services[0]
	assert.Equal(t, "broken", b.Name)
	assert.True(t, b.DryRun)
	assert.Equal(t, "1m0s", b.Interval)
	assert.Equal(t, "permission denied", b.CacheError)
	assert.Nil(t, b.Cached)
	assert.Nil(t, b.Last)

	h := body.Services[1]
	assert.Equal(t, "home", h.Name)
	assert.True(t, h.Running)
	require.NotNil(t, h.Cached)
	assert.Equal(t, "192.0.2.1", h.Cached.IPv4)
	require.NotNil(t, h.Last)
	assert.Equal(t, "failed", h.Last.Outcome)
	assert.Equal(t, "203.0.113.9", h.Last.Record.IPv4)
	require.NotNil(t, h.Last.Previous)
	assert.Equal(t, "192.0.2.1", h.Last.Previous.IPv4)
	require.Len(t, h.Last.Providers, 2)
	assert.Equal(t, "boom", h.Last.Providers[1].Error)
	assert.Equal(t, "1 of 2 provider(s) failed", h.Last.Error)
}
