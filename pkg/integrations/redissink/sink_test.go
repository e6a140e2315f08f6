package redissink

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"coinwatch/pkg/types/prices"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew_InvalidConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	_, err := New(WithLogger(discardLogger))
	assert.ErrorIs(t, err, ErrInvalidSinkConfig)

	_, err = New(WithClient(client))
	assert.ErrorIs(t, err, ErrInvalidSinkConfig)

	_, err = New(WithClient(client), WithLogger(discardLogger), WithTTL(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidSinkConfig)
}

// requires a local Redis; skipped otherwise
func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	s, err := New(WithClient(client), WithLogger(discardLogger))
	require.NoError(t, err)

	pair := prices.Pair{Base: "BTC", Quote: "USD"}
	point := prices.PricePoint{
		Pair:      pair,
		Price:     64123.45,
		Timestamp: time.Now().Truncate(time.Second),
	}

	require.NoError(t, s.Record(ctx, point))
	defer client.Del(ctx, "prices:BTC-USD")

	latest, err := s.Latest(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, point.Price, latest.Price)
	assert.Equal(t, point.Timestamp.Unix(), latest.Timestamp.Unix())
}
