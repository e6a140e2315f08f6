package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	handler := func() error { return nil }

	tests := []struct {
		name string
		opts []Option
	}{
		{"no context", []Option{WithLogger(discardLogger), WithInterval(time.Second), WithHandler(handler)}},
		{"no logger", []Option{WithContext(ctx), WithInterval(time.Second), WithHandler(handler)}},
		{"no interval", []Option{WithContext(ctx), WithLogger(discardLogger), WithHandler(handler)}},
		{"no handler", []Option{WithContext(ctx), WithLogger(discardLogger), WithInterval(time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidSchedulerConfig)
		})
	}
}

func TestScheduler_TicksHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	s, err := New(
		WithContext(ctx),
		WithLogger(discardLogger),
		WithInterval(10*time.Millisecond),
		WithHandler(func() error {
			ticks.Add(1)
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	s, err := New(
		WithContext(ctx),
		WithLogger(discardLogger),
		WithInterval(10*time.Millisecond),
		WithHandler(func() error {
			ticks.Add(1)
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	count := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), count+1)
}
