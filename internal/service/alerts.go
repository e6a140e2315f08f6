package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"coinwatch/internal/models"
	tickerScheduler "coinwatch/pkg/integrations/scheduler"
	"coinwatch/pkg/metrics"
	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"
	"coinwatch/pkg/types/pubsub"
	"coinwatch/pkg/types/scheduler"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrInvalidAlertServiceConfig = errors.New("invalid alert service config")

type AlertStore interface {
	ListArmedAlerts() ([]models.Alert, error)
	DisarmAlert(id int64, firedAt time.Time) error
}

// PriceSubscriber is the slice of the poller the alert evaluator needs.
type PriceSubscriber interface {
	Subscribe(pair prices.Pair, fn func(prices.PricePoint)) (uuid.UUID, error)
	Unsubscribe(pair prices.Pair, id uuid.UUID)
}

// AlertEvent is published on every threshold crossing.
type AlertEvent struct {
	ID        uuid.UUID   `json:"id"`
	AlertID   int64       `json:"alert_id"`
	Pair      prices.Pair `json:"pair"`
	Threshold float64     `json:"threshold"`
	Direction string      `json:"direction"`
	Price     float64     `json:"price"`
	FiredAt   time.Time   `json:"fired_at"`
}

// AlertService watches refreshed prices and fires armed alerts when the
// price crosses their threshold. An alert fires on a crossing only, so a
// price that was already past the threshold when the alert arrived stays
// quiet until the price comes back and crosses again.
type AlertService struct {
	ctx          context.Context
	logger       *slog.Logger
	repo         AlertStore
	poller       PriceSubscriber
	publisher    pubsub.Publisher
	scheduler    scheduler.Scheduler
	syncInterval time.Duration

	mu        sync.Mutex
	alerts    map[string][]models.Alert
	lastPrice map[string]float64
	subs      map[string]uuid.UUID
}

type AlertOption func(*AlertService)

func WithAlertContext(ctx context.Context) AlertOption {
	return func(s *AlertService) {
		s.ctx = ctx
	}
}

func WithAlertLogger(l *slog.Logger) AlertOption {
	return func(s *AlertService) {
		s.logger = l
	}
}

func WithAlertStore(store AlertStore) AlertOption {
	return func(s *AlertService) {
		s.repo = store
	}
}

func WithAlertPoller(p PriceSubscriber) AlertOption {
	return func(s *AlertService) {
		s.poller = p
	}
}

func WithAlertPublisher(pub pubsub.Publisher) AlertOption {
	return func(s *AlertService) {
		s.publisher = pub
	}
}

func WithAlertSyncInterval(d time.Duration) AlertOption {
	return func(s *AlertService) {
		s.syncInterval = d
	}
}

func (s *AlertService) IsValid() error {
	switch {
	case s.ctx == nil:
		return errors.Wrap(ErrInvalidAlertServiceConfig, "ctx cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidAlertServiceConfig, "logger cannot be nil")
	case s.repo == nil:
		return errors.Wrap(ErrInvalidAlertServiceConfig, "alert store cannot be nil")
	case s.poller == nil:
		return errors.Wrap(ErrInvalidAlertServiceConfig, "poller cannot be nil")
	case s.syncInterval <= 0:
		return errors.Wrap(ErrInvalidAlertServiceConfig, "sync interval must be positive")
	default:
		return nil
	}
}

func NewAlertService(opts ...AlertOption) (*AlertService, error) {
	s := &AlertService{
		syncInterval: scheduler.IntervalMinute,
		alerts:       make(map[string][]models.Alert),
		lastPrice:    make(map[string]float64),
		subs:         make(map[string]uuid.UUID),
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
		tickerScheduler.WithInterval(s.syncInterval),
		tickerScheduler.WithHandler(s.Sync),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	s.scheduler = sched

	return s, nil
}

func (s *AlertService) Start() error {
	if err := s.Sync(); err != nil {
		s.logger.Error("initial alert sync failed", "error", err)
	}

	return s.scheduler.Start()
}

func (s *AlertService) Stop() {
	s.scheduler.Stop()

	s.mu.Lock()
	subs := make(map[string]uuid.UUID, len(s.subs))
	for key, id := range s.subs {
		subs[key] = id
	}
	s.subs = make(map[string]uuid.UUID)
	s.mu.Unlock()

	for key, id := range subs {
		if pair, err := pairs.Parse(key); err == nil {
			s.poller.Unsubscribe(pair, id)
		}
	}
}

// Sync reloads the armed alerts and adjusts the poller subscriptions so
// every pair with at least one armed alert keeps refreshing.
func (s *AlertService) Sync() error {
	armed, err := s.repo.ListArmedAlerts()
	if err != nil {
		return errors.Wrap(err, "failed to list armed alerts")
	}

	grouped := make(map[string][]models.Alert, len(armed))
	for _, alert := range armed {
		key := alert.Pair().String()
		grouped[key] = append(grouped[key], alert)
	}

	var subscribe, unsubscribe []string

	s.mu.Lock()
	s.alerts = grouped
	for key := range grouped {
		if _, ok := s.subs[key]; !ok {
			subscribe = append(subscribe, key)
		}
	}
	for key := range s.subs {
		if _, ok := grouped[key]; !ok {
			unsubscribe = append(unsubscribe, key)
		}
	}
	s.mu.Unlock()

	for _, key := range subscribe {
		pair, err := pairs.Parse(key)
		if err != nil {
			s.logger.Warn("skipping alert with invalid pair", "pair", key, "error", err)
			continue
		}
		id, err := s.poller.Subscribe(pair, s.onPrice)
		if err != nil {
			s.logger.Error("failed to subscribe alert pair", "pair", key, "error", err)
			continue
		}
		s.mu.Lock()
		s.subs[key] = id
		s.mu.Unlock()
	}

	for _, key := range unsubscribe {
		s.mu.Lock()
		id := s.subs[key]
		delete(s.subs, key)
		delete(s.lastPrice, key)
		s.mu.Unlock()

		if pair, err := pairs.Parse(key); err == nil {
			s.poller.Unsubscribe(pair, id)
		}
	}

	return nil
}

func (s *AlertService) onPrice(point prices.PricePoint) {
	key := point.Pair.String()

	s.mu.Lock()
	prev, seen := s.lastPrice[key]
	s.lastPrice[key] = point.Price
	var fired []models.Alert
	if seen {
		remaining := s.alerts[key][:0]
		for _, alert := range s.alerts[key] {
			if crossed(alert, prev, point.Price) {
				fired = append(fired, alert)
				if alert.Repeating {
					remaining = append(remaining, alert)
				}
				continue
			}
			remaining = append(remaining, alert)
		}
		s.alerts[key] = remaining
	}
	s.mu.Unlock()

	for _, alert := range fired {
		s.fire(alert, point)
	}
}

// crossed reports whether the price moved across the threshold between
// two consecutive observations. Sitting on the far side does not count.
func crossed(alert models.Alert, prev, current float64) bool {
	switch alert.Direction {
	case models.DirectionAbove:
		return prev <= alert.Threshold && current > alert.Threshold
	case models.DirectionBelow:
		return prev >= alert.Threshold && current < alert.Threshold
	default:
		return false
	}
}

func (s *AlertService) fire(alert models.Alert, point prices.PricePoint) {
	now := time.Now()

	if err := s.repo.DisarmAlert(alert.ID, now); err != nil {
		s.logger.Error("failed to record alert firing", "alert", alert.ID, "error", err)
	}

	metrics.AlertsFired.Inc()
	s.logger.Info("alert fired",
		"alert", alert.ID,
		"pair", point.Pair.String(),
		"direction", alert.Direction,
		"threshold", alert.Threshold,
		"price", point.Price,
	)

	if s.publisher == nil {
		return
	}

	event := AlertEvent{
		ID:        uuid.New(),
		AlertID:   alert.ID,
		Pair:      point.Pair,
		Threshold: alert.Threshold,
		Direction: alert.Direction,
		Price:     point.Price,
		FiredAt:   now,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(data); err != nil {
		s.logger.Error("failed to publish alert event", "alert", alert.ID, "error", err)
	}
}
