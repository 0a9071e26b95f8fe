package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSource(v4, v6 []string) *Source {
	client := util.CreateHTTPClient(util.HTTPOptions{})
	return New(Options{IPv4URLs: v4, IPv6URLs: v6, IPv4Client: client, IPv6Client: client})
}

func TestFetchFallsThroughURLs(t *testing.T) {
	broken := newServer(t, "oops", http.StatusBadGateway)
	garbage := newServer(t, "not an address", http.StatusOK)
	good := newServer(t, "203.0.113.9\n", http.StatusOK)

	s := newSource([]string{broken.URL, garbage.URL, good.URL}, nil)
	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)
}

func TestFetchV6(t *testing.T) {
	srv := newServer(t, "2001:db8::5", http.StatusOK)
	s := newSource(nil, []string{srv.URL})
	addr, err := s.Fetch(context.Background(), ddns.V6)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::5"), addr)
}

func TestFetchRejectsWrongFamily(t *testing.T) {
	srv := newServer(t, "203.0.113.9", http.StatusOK)
	s := newSource(nil, []string{srv.URL})
	_, err := s.Fetch(context.Background(), ddns.V6)
	assert.Error(t, err)
}

func TestFetchAllFail(t *testing.T) {
	srv := newServer(t, "", http.StatusNotFound)
	s := newSource([]string{srv.URL, srv.URL}, nil)
	_, err := s.Fetch(context.Background(), ddns.V4)
	assert.ErrorContains(t, err, "404")
}

func TestDefaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultIPv4URLs, s.urls[ddns.V4])
	assert.Equal(t, DefaultIPv6URLs, s.urls[ddns.V6])
	assert.Equal(t, Code, s.String())
}
