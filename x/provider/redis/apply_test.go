package redis

import (
	"context"
	"net/netip"
	"testing"

	"github.com/jxo-me/ddnsd/core/ddns"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testV4 = netip.MustParseAddr("203.0.113.9")
	testV6 = netip.MustParseAddr("2001:db8::9")
)

func newMockRedis(t *testing.T) (*Redis, *mock.Client) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	return &Redis{client: client, prefix: DefaultPrefix, logger: sdklogger.Nop()}, client
}

func TestApplyFirstWrite(t *testing.T) {
	r, client := newMockRedis(t)
	record := ddns.Record{V4: testV4, V6: testV6}

	gomock.InOrder(
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv4")).Return(mock.Result(mock.RedisNil())),
		client.EXPECT().Do(gomock.Any(), mock.Match("SET", "ddns:ipv4", testV4.String())).Return(mock.Result(mock.RedisString("OK"))),
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv6")).Return(mock.Result(mock.RedisNil())),
		client.EXPECT().Do(gomock.Any(), mock.Match("SET", "ddns:ipv6", testV6.String())).Return(mock.Result(mock.RedisString("OK"))),
		client.EXPECT().Do(gomock.Any(), mock.Match("PUBLISH", "ddns:events", record.String())).Return(mock.Result(mock.RedisInt64(1))),
	)

	changed, err := r.Apply(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestApplySameRecordOnlyReads(t *testing.T) {
	r, client := newMockRedis(t)

	gomock.InOrder(
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv4")).Return(mock.Result(mock.RedisString(testV4.String()))),
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv6")).Return(mock.Result(mock.RedisString(testV6.String()))),
	)

	changed, err := r.Apply(context.Background(), ddns.Record{V4: testV4, V6: testV6})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyAbsentFamilyIsDeleted(t *testing.T) {
	r, client := newMockRedis(t)
	record := ddns.Record{V4: testV4}

	gomock.InOrder(
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv4")).Return(mock.Result(mock.RedisString(testV4.String()))),
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv6")).Return(mock.Result(mock.RedisString(testV6.String()))),
		client.EXPECT().Do(gomock.Any(), mock.Match("DEL", "ddns:ipv6")).Return(mock.Result(mock.RedisInt64(1))),
		client.EXPECT().Do(gomock.Any(), mock.Match("PUBLISH", "ddns:events", record.String())).Return(mock.Result(mock.RedisInt64(0))),
	)

	changed, err := r.Apply(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestApplySetFailure(t *testing.T) {
	r, client := newMockRedis(t)

	gomock.InOrder(
		client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv4")).Return(mock.Result(mock.RedisNil())),
		client.EXPECT().Do(gomock.Any(), mock.Match("SET", "ddns:ipv4", testV4.String())).Return(mock.ErrorResult(errors.New("READONLY"))),
	)

	changed, err := r.Apply(context.Background(), ddns.Record{V4: testV4, V6: testV6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set ddns:ipv4")
	assert.False(t, changed)
}

func TestApplyGetFailure(t *testing.T) {
	r, client := newMockRedis(t)

	client.EXPECT().Do(gomock.Any(), mock.Match("GET", "ddns:ipv4")).Return(mock.ErrorResult(errors.New("connection refused")))

	_, err := r.Apply(context.Background(), ddns.Record{V4: testV4})
	assert.ErrorContains(t, err, "get ddns:ipv4")
}
