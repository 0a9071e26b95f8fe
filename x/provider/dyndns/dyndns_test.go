package dyndns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	var got *http.Request
	answer := "good 203.0.113.9\nnochg 203.0.113.9"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		_, _ = w.Write([]byte(answer))
	}))
	defer srv.Close()

	d, err := New(Options{
		Server:   srv.URL,
		Username: "user",
		Password: "pass",
		Hosts:    []string{"a.example.com", "b.example.com"},
	})
	require.NoError(t, err)

	record := ddns.Record{V4: netip.MustParseAddr("203.0.113.9"), V6: netip.MustParseAddr("2001:db8::9")}
	changed, err := d.Apply(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NotNil(t, got)
	assert.Equal(t, "/nic/update", got.URL.Path)
	assert.Equal(t, "a.example.com,b.example.com", got.URL.Query().Get("hostname"))
	assert.Equal(t, "203.0.113.9,2001:db8::9", got.URL.Query().Get("myip"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)

	answer = "nochg 203.0.113.9\nnochg 203.0.113.9"
	changed, err = d.Apply(context.Background(), record)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyErrorCodes(t *testing.T) {
	for _, answer := range []string{"badauth", "nohost", "911", "good 1.2.3.4\nabuse"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(answer))
		}))
		d, err := New(Options{Server: srv.URL, Username: "u", Hosts: []string{"a.example.com", "b.example.com"}})
		require.NoError(t, err)

		_, err = d.Apply(context.Background(), ddns.Record{V4: netip.MustParseAddr("203.0.113.9")})
		assert.Error(t, err, answer)
		srv.Close()
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Hosts: []string{"a.example.com"}})
	assert.Error(t, err)
	_, err = New(Options{Username: "u"})
	assert.Error(t, err)
}
