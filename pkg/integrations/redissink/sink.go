package redissink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"coinwatch/pkg/types/prices"
	"coinwatch/pkg/types/sink"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidSinkConfig = errors.New("invalid redis sink config")

	_ sink.Sink = (*Sink)(nil)
)

const snapshotTTL = 24 * time.Hour

// Sink mirrors refreshed price points into Redis sorted sets keyed
// prices:<pair>, scored by unix timestamp, so external consumers can read
// recent quotes without touching this process.
type Sink struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

type Option func(*Sink)

func WithClient(client *redis.Client) Option {
	return func(s *Sink) {
		s.client = client
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = l
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		s.ttl = ttl
	}
}

func (s *Sink) IsValid() error {
	switch {
	case s.client == nil:
		return errors.Wrap(ErrInvalidSinkConfig, "client cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidSinkConfig, "logger cannot be nil")
	case s.ttl <= 0:
		return errors.Wrap(ErrInvalidSinkConfig, "ttl must be positive")
	default:
		return nil
	}
}

func New(opts ...Option) (*Sink, error) {
	s := &Sink{
		ttl: snapshotTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, s.IsValid()
}

func key(pair prices.Pair) string {
	return fmt.Sprintf("prices:%s", pair.String())
}

func (s *Sink) Record(ctx context.Context, point prices.PricePoint) error {
	k := key(point.Pair)
	member := strconv.FormatFloat(point.Price, 'f', -1, 64)
	score := float64(point.Timestamp.Unix())

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: score, Member: member})
	pipe.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("(%d", time.Now().Add(-s.ttl).Unix()))
	pipe.Expire(ctx, k, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to record price snapshot")
	}
	return nil
}

// Latest reads the most recent snapshot for a pair.
func (s *Sink) Latest(ctx context.Context, pair prices.Pair) (prices.PricePoint, error) {
	res, err := s.client.ZRevRangeWithScores(ctx, key(pair), 0, 0).Result()
	if err != nil {
		return prices.PricePoint{}, errors.Wrap(err, "failed to read price snapshot")
	}
	if len(res) == 0 {
		return prices.PricePoint{}, errors.Errorf("no snapshot for %s", pair)
	}

	member, ok := res[0].Member.(string)
	if !ok {
		return prices.PricePoint{}, errors.Errorf("unexpected member type for %s", pair)
	}
	value, err := strconv.ParseFloat(member, 64)
	if err != nil {
		return prices.PricePoint{}, errors.Wrap(err, "failed to parse snapshot price")
	}

	return prices.PricePoint{
		Pair:      pair,
		Price:     value,
		Timestamp: time.Unix(int64(res[0].Score), 0),
	}, nil
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
