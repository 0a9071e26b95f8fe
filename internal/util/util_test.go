package util

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAddrs(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("2001:db8::10"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("203.0.113.1")},
	}
	v4, v6 := SplitAddrs(addrs)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.168.1.10")}, v4)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("2001:db8::10")}, v6)
}

func TestGetHTTPResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer srv.Close()

	client := CreateHTTPClient(HTTPOptions{RetryMax: 0})

	var result struct {
		Status string `json:"status"`
	}
	resp, err := client.Get(srv.URL)
	require.NoError(t, GetHTTPResponse(resp, srv.URL, err, &result))
	assert.Equal(t, "SUCCESS", result.Status)

	resp, err = client.Get(srv.URL + "/fail")
	body, err := GetHTTPResponseOrg(resp, srv.URL, err)
	assert.ErrorContains(t, err, "400")
	assert.Contains(t, string(body), "nope")
}

func TestCreateHTTPClientRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := CreateHTTPClient(HTTPOptions{RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	resp, err := client.Get(srv.URL)
	body, err := GetHTTPResponseOrg(resp, srv.URL, err)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 2, hits.Load())
}

func TestCreateNoProxyHTTPClientPinsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	}))
	defer srv.Close()

	client := CreateNoProxyHTTPClient("tcp4", HTTPOptions{})
	resp, err := client.Get(srv.URL)
	body, err := GetHTTPResponseOrg(resp, srv.URL, err)
	require.NoError(t, err)
	assert.Contains(t, string(body), "127.0.0.1")
}

func TestFindAddr(t *testing.T) {
	addr, ok := FindAddr("203.0.113.7\n", ddns.V4)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("203.0.113.7"), addr)

	addr, ok = FindAddr("<html><body>Current IP Address: 198.51.100.23</body></html>", ddns.V4)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("198.51.100.23"), addr)

	addr, ok = FindAddr("  2001:db8::1  \n", ddns.V6)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), addr)

	_, ok = FindAddr("203.0.113.7", ddns.V6)
	assert.False(t, ok)
	_, ok = FindAddr("no address here", ddns.V4)
	assert.False(t, ok)
}

func TestMatchAddr(t *testing.T) {
	addrs := []netip.Addr{
		netip.MustParseAddr("2001:db8::1"),
		netip.MustParseAddr("2001:db8:1::2"),
		netip.MustParseAddr("240e::3"),
	}

	got, err := MatchAddr(addrs, "")
	require.NoError(t, err)
	assert.Equal(t, addrs[0], got)

	got, err = MatchAddr(addrs, "@2")
	require.NoError(t, err)
	assert.Equal(t, addrs[1], got)

	got, err = MatchAddr(addrs, "^240e")
	require.NoError(t, err)
	assert.Equal(t, addrs[2], got)

	_, err = MatchAddr(addrs, "@0")
	assert.Error(t, err)
	_, err = MatchAddr(addrs, "@9")
	assert.Error(t, err)
	_, err = MatchAddr(addrs, "^fd")
	assert.Error(t, err)
	_, err = MatchAddr(nil, "")
	assert.Error(t, err)
}

func TestCheckMatch(t *testing.T) {
	for _, ok := range []string{"", "@1", "@12", "^240e", "@x"} {
		assert.NoError(t, CheckMatch(ok), ok)
	}
	for _, bad := range []string{"@0", "@-1", "(", "[a-"} {
		assert.Error(t, CheckMatch(bad), bad)
	}
}
