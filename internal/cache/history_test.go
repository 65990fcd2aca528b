package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/history"
)

func sampleSeries() []history.Sample {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []history.Sample{
		{Price: decimal.RequireFromString("100.25"), Volume: 10, At: at},
		{Price: decimal.RequireFromString("101.5"), Volume: 12, At: at.Add(time.Minute)},
	}
}

func TestEncodeDecodePreservesSamples(t *testing.T) {
	in := sampleSeries()
	data, err := encode(in)
	require.NoError(t, err)

	out, err := decode(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Price.Equal(in[0].Price))
	assert.True(t, out[1].At.Equal(in[1].At))
	assert.Equal(t, int64(12), out[1].Volume)
}

func TestEncodeEmptyIsArray(t *testing.T) {
	data, err := encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestField(t *testing.T) {
	assert.Equal(t, "all", field(0))
	assert.Equal(t, "all", field(-3))
	assert.Equal(t, "50", field(50))
}

// TestRedisRoundTrip runs against a real server when REDIS_TEST_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	c := NewHistoryCache(client, time.Minute)
	c.prefix = "papertrade:test:history:"
	defer client.Del(ctx, c.key("asset-1"))

	_, ok, err := c.Get(ctx, "asset-1", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "asset-1", 10, sampleSeries()))
	got, ok, err := c.Get(ctx, "asset-1", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)

	require.NoError(t, c.Invalidate(ctx, "asset-1"))
	_, ok, err = c.Get(ctx, "asset-1", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}
