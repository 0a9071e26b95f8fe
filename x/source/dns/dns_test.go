package dns

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveDNS(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			q := req.Question[0]
			hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 0}
			switch {
			case q.Name == "myip.test." && q.Qtype == dns.TypeA:
				m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP("203.0.113.9")})
			case q.Name == "myip.test." && q.Qtype == dns.TypeAAAA:
				m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP("2001:db8::9")})
			case q.Name == "txt.test." && q.Qtype == dns.TypeTXT:
				m.Answer = append(m.Answer, &dns.TXT{Hdr: hdr, Txt: []string{"198.51.100.77"}})
			default:
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	<-started
	return pc.LocalAddr().String()
}

func TestFetchA(t *testing.T) {
	server := serveDNS(t)
	s, err := New(Options{IPv4: Query{Name: "myip.test", Server: server}, Timeout: time.Second})
	require.NoError(t, err)

	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)
}

func TestFetchTXT(t *testing.T) {
	server := serveDNS(t)
	s, err := New(Options{IPv4: Query{Name: "txt.test", Server: server, Type: "txt"}, Timeout: time.Second})
	require.NoError(t, err)

	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("198.51.100.77"), addr)
}

func TestFetchNXDomain(t *testing.T) {
	server := serveDNS(t)
	s, err := New(Options{IPv4: Query{Name: "missing.test", Server: server}, Timeout: time.Second})
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), ddns.V4)
	assert.ErrorContains(t, err, "NXDOMAIN")
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{IPv4: Query{Name: "myip.test"}})
	assert.Error(t, err)
	_, err = New(Options{IPv4: Query{Name: "myip.test", Server: "127.0.0.1:53", Type: "MX"}})
	assert.Error(t, err)

	s, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultIPv6Query, s.queries[ddns.V6])
}
