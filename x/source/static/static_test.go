package static

import (
	"context"
	"net/netip"
	"testing"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s, err := New("203.0.113.9", "")
	require.NoError(t, err)

	addr, err := s.Fetch(context.Background(), ddns.V4)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)

	_, err = s.Fetch(context.Background(), ddns.V6)
	assert.Error(t, err)
}

func TestStaticValidation(t *testing.T) {
	_, err := New("", "")
	assert.Error(t, err)
	_, err = New("2001:db8::1", "")
	assert.Error(t, err)
	_, err = New("", "not-an-ip")
	assert.Error(t, err)
}
