package stun

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveSTUN answers binding requests on a local udp socket with mapped.
func serveSTUN(t *testing.T, mapped net.IP) string {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req := new(stun.Message)
			req.Raw = append([]byte(nil), buf[:n]...)
			if err := req.Decode(); err != nil {
				continue
			}
			res, err := stun.Build(
				stun.NewTransactionIDSetter(req.TransactionID),
				stun.BindingSuccess,
				&stun.XORMappedAddress{IP: mapped, Port: 40000},
				stun.Fingerprint,
			)
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(res.Raw, from)
		}
	}()
	return conn.LocalAddr().String()
}

func TestFetchXORMappedAddress(t *testing.T) {
	server := serveSTUN(t, net.ParseIP("203.0.113.9"))
	s := New(Options{Servers: []string{"stun:" + server}, Timeout: time.Second})

	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)
}

func TestFetchFallsBackToNextServer(t *testing.T) {
	// nothing listens on the first server, the read times out
	dead, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	server := serveSTUN(t, net.ParseIP("198.51.100.4"))
	s := New(Options{Servers: []string{deadAddr, server}, Timeout: 200 * time.Millisecond})

	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("198.51.100.4"), addr)
}

func TestParseServer(t *testing.T) {
	cases := map[string]string{
		"stun:stun.l.google.com:19302": "stun.l.google.com:19302",
		"stun.cloudflare.com":          "stun.cloudflare.com:3478",
		"[2001:db8::1]:3478":           "[2001:db8::1]:3478",
		"2001:db8::1":                  "[2001:db8::1]:3478",
	}
	for in, want := range cases {
		got, err := ParseServer(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseServer("stun:")
	assert.Error(t, err)
}
