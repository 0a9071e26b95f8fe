package hook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(outcome service.Outcome) *service.TickResult {
	return &service.TickResult{
		Outcome:  outcome,
		CacheHit: true,
		Previous: ddns.Record{V4: netip.MustParseAddr("192.0.2.1"), V6: netip.MustParseAddr("2001:db8::1")},
		Record:   ddns.Record{V4: netip.MustParseAddr("203.0.113.9"), V6: netip.MustParseAddr("2001:db8::1")},
		Providers: []service.ProviderResult{
			{Provider: "cloudflare", Changed: true},
			{Provider: "porkbun", Err: errors.New("boom")},
		},
	}
}

func TestExecHookPost(t *testing.T) {
	var (
		gotBody   string
		gotHeader http.Header
		gotQuery  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Clone()
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	w := NewHook(
		srv.URL+"/hook?v4=#{ipv4Addr}",
		`{"v4":"#{ipv4Addr}","v4r":"#{ipv4Result}","v6r":"#{ipv6Result}","result":"#{result}","providers":"#{providers}"}`,
		"Authorization: Bearer abc\n\nX-Url: http://x\nbroken",
		nil, nil,
	)
	require.NoError(t, w.ExecHook(context.Background(), tick(service.OutcomeFailed)))

	assert.Equal(t, "v4=203.0.113.9", gotQuery)
	assert.JSONEq(t, `{"v4":"203.0.113.9","v4r":"Failure","v6r":"UnChanged","result":"Failure","providers":"cloudflare:Success,porkbun:Failure"}`, gotBody)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "Bearer abc", gotHeader.Get("Authorization"))
	assert.Equal(t, "http://x", gotHeader.Get("X-Url"))
}

func TestExecHookSkipsUnchanged(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	w := NewHook(srv.URL, "", "", nil, nil)
	require.NoError(t, w.ExecHook(context.Background(), tick(service.OutcomeUnchanged)))
	require.NoError(t, w.ExecHook(context.Background(), tick(service.OutcomeEmpty)))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, w.ExecHook(context.Background(), tick(service.OutcomeCommitted)))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecHookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewHook(srv.URL, "", "", nil, nil)
	assert.Error(t, w.ExecHook(context.Background(), tick(service.OutcomeCommitted)))
}

func TestResultWords(t *testing.T) {
	assert.Equal(t, "Success", string(Result(tick(service.OutcomeCommitted))))
	assert.Equal(t, "Failure", string(Result(tick(service.OutcomeFailed))))
	assert.Equal(t, "UnChanged", string(Result(tick(service.OutcomeDryRun))))

	first := tick(service.OutcomeCommitted)
	first.CacheHit = false
	first.Previous = ddns.Record{}
	first.Record.V6 = netip.Addr{}
	assert.Equal(t, "Success", string(familyResult(first, ddns.V4)))
	assert.Equal(t, "UnChanged", string(familyResult(first, ddns.V6)))
}
