package service

import (
	"context"
	"log/slog"
	"time"

	"coinwatch/internal/models"
	tickerScheduler "coinwatch/pkg/integrations/scheduler"
	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"
	"coinwatch/pkg/types/scheduler"

	"github.com/pkg/errors"
)

var (
	ErrInvalidHistoryServiceConfig = errors.New("invalid history service config")
	ErrInvalidTimeRange            = errors.New("invalid time range")
)

type HistoryStore interface {
	GetHistory(base, quote string, from, to time.Time) ([]models.PricePoint, error)
	AppendPricePoint(point *models.PricePoint) error
	DeleteHistoryOlderThan(cutoff time.Time) (int64, error)
}

// HistoryService serves historical price ranges from local storage,
// backfilling from the provider when a range has never been stored, and
// prunes rows past the retention window.
type HistoryService struct {
	ctx       context.Context
	logger    *slog.Logger
	repo      HistoryStore
	provider  prices.QuoteProvider
	scheduler scheduler.Scheduler
	retention time.Duration
}

type HistoryOption func(*HistoryService)

func WithHistoryContext(ctx context.Context) HistoryOption {
	return func(s *HistoryService) {
		s.ctx = ctx
	}
}

func WithHistoryLogger(l *slog.Logger) HistoryOption {
	return func(s *HistoryService) {
		s.logger = l
	}
}

func WithHistoryStore(store HistoryStore) HistoryOption {
	return func(s *HistoryService) {
		s.repo = store
	}
}

func WithHistoryProvider(provider prices.QuoteProvider) HistoryOption {
	return func(s *HistoryService) {
		s.provider = provider
	}
}

func WithHistoryRetention(d time.Duration) HistoryOption {
	return func(s *HistoryService) {
		s.retention = d
	}
}

func (s *HistoryService) IsValid() error {
	switch {
	case s.ctx == nil:
		return errors.Wrap(ErrInvalidHistoryServiceConfig, "ctx cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidHistoryServiceConfig, "logger cannot be nil")
	case s.repo == nil:
		return errors.Wrap(ErrInvalidHistoryServiceConfig, "history store cannot be nil")
	case s.retention <= 0:
		return errors.Wrap(ErrInvalidHistoryServiceConfig, "retention must be positive")
	default:
		return nil
	}
}

func NewHistoryService(opts ...HistoryOption) (*HistoryService, error) {
	s := &HistoryService{
		retention: 90 * 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.IsValid(); err != nil {
		return nil, err
	}

	sched, err := tickerScheduler.New(
		tickerScheduler.WithContext(s.ctx),
		tickerScheduler.WithLogger(s.logger),
		tickerScheduler.WithInterval(scheduler.IntervalDaily),
		tickerScheduler.WithHandler(s.Prune),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	s.scheduler = sched

	return s, nil
}

func (s *HistoryService) Start() error {
	if err := s.Prune(); err != nil {
		s.logger.Error("initial history prune failed", "error", err)
	}

	return s.scheduler.Start()
}

func (s *HistoryService) Stop() {
	s.scheduler.Stop()
}

// GetHistory returns stored points for the range, oldest first. When
// nothing is stored yet it backfills from the provider and persists what
// came back so the next query is local.
func (s *HistoryService) GetHistory(pair prices.Pair, from, to time.Time) ([]prices.PricePoint, error) {
	if err := pairs.Validate(pair); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, errors.Wrap(ErrInvalidTimeRange, "from must precede to")
	}

	stored, err := s.repo.GetHistory(pair.Base, pair.Quote, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	if len(stored) > 0 {
		points := make([]prices.PricePoint, 0, len(stored))
		for _, row := range stored {
			points = append(points, row.Point())
		}
		return points, nil
	}

	if s.provider == nil {
		return []prices.PricePoint{}, nil
	}

	fetched, err := s.provider.History(pair, from, to)
	if err != nil {
		return nil, err
	}

	for _, point := range fetched {
		if err := s.repo.AppendPricePoint(models.FromPoint(point)); err != nil {
			s.logger.Error("failed to backfill history point", "pair", pair.String(), "error", err)
			break
		}
	}

	return fetched, nil
}

func (s *HistoryService) Prune() error {
	cutoff := time.Now().Add(-s.retention)

	pruned, err := s.repo.DeleteHistoryOlderThan(cutoff)
	if err != nil {
		return errors.Wrap(err, "failed to prune history")
	}
	if pruned > 0 {
		s.logger.Info("pruned old price points", "count", pruned, "cutoff", cutoff)
	}
	return nil
}
