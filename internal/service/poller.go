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
	"coinwatch/pkg/types/cache"
	"coinwatch/pkg/types/prices"
	"coinwatch/pkg/types/pubsub"
	"coinwatch/pkg/types/scheduler"
	"coinwatch/pkg/types/sink"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrInvalidPollerConfig = errors.New("invalid market poller config")

type WatchListSource interface {
	GetWatchList() ([]models.WatchPair, error)
}

type HistoryWriter interface {
	AppendPricePoint(point *models.PricePoint) error
}

// Entry is one cached price point. Entries are replaced whole on refresh,
// never mutated in place.
type Entry struct {
	Point     prices.PricePoint
	FetchedAt time.Time
}

type backoffState struct {
	attempts int
	until    time.Time
}

// MarketPoller keeps a best-effort recent view of prices for the watch
// list and all subscribed pairs without hammering the providers.
type MarketPoller struct {
	ctx          context.Context
	logger       *slog.Logger
	provider     prices.QuoteProvider
	cache        cache.Cache[string, Entry]
	publisher    pubsub.Publisher
	repo         WatchListSource
	history      HistoryWriter
	snapshots    sink.Sink
	scheduler    scheduler.Scheduler
	pollInterval time.Duration
	syncInterval time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	evictAfter   time.Duration
	lastSync     time.Time

	mu       sync.Mutex
	flights  map[string]*sync.Mutex
	backoffs map[string]*backoffState
	subs     map[string]map[uuid.UUID]func(prices.PricePoint)
	watched  map[string]prices.Pair
	lastUsed map[string]time.Time
}

type PollerOption func(*MarketPoller)

func WithPollerContext(ctx context.Context) PollerOption {
	return func(p *MarketPoller) {
		p.ctx = ctx
	}
}

func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *MarketPoller) {
		p.logger = l
	}
}

func WithPollerProvider(provider prices.QuoteProvider) PollerOption {
	return func(p *MarketPoller) {
		p.provider = provider
	}
}

func WithPollerCache(c cache.Cache[string, Entry]) PollerOption {
	return func(p *MarketPoller) {
		p.cache = c
	}
}

func WithPollerPublisher(pub pubsub.Publisher) PollerOption {
	return func(p *MarketPoller) {
		p.publisher = pub
	}
}

func WithPollerRepo(r WatchListSource) PollerOption {
	return func(p *MarketPoller) {
		p.repo = r
	}
}

func WithPollerHistory(h HistoryWriter) PollerOption {
	return func(p *MarketPoller) {
		p.history = h
	}
}

func WithPollerSnapshotSink(s sink.Sink) PollerOption {
	return func(p *MarketPoller) {
		p.snapshots = s
	}
}

func WithPollerInterval(d time.Duration) PollerOption {
	return func(p *MarketPoller) {
		p.pollInterval = d
	}
}

func WithPollerSyncInterval(d time.Duration) PollerOption {
	return func(p *MarketPoller) {
		p.syncInterval = d
	}
}

func WithPollerBackoffBase(d time.Duration) PollerOption {
	return func(p *MarketPoller) {
		p.backoffBase = d
	}
}

func WithPollerEvictAfter(d time.Duration) PollerOption {
	return func(p *MarketPoller) {
		p.evictAfter = d
	}
}

func (p *MarketPoller) IsValid() error {
	switch {
	case p.ctx == nil:
		return errors.Wrap(ErrInvalidPollerConfig, "ctx cannot be nil")
	case p.logger == nil:
		return errors.Wrap(ErrInvalidPollerConfig, "logger cannot be nil")
	case p.provider == nil:
		return errors.Wrap(ErrInvalidPollerConfig, "provider cannot be nil")
	case p.cache == nil:
		return errors.Wrap(ErrInvalidPollerConfig, "cache cannot be nil")
	case p.pollInterval <= 0:
		return errors.Wrap(ErrInvalidPollerConfig, "poll interval must be positive")
	case p.backoffBase <= 0:
		return errors.Wrap(ErrInvalidPollerConfig, "backoff base must be positive")
	default:
		return nil
	}
}

func NewMarketPoller(opts ...PollerOption) (*MarketPoller, error) {
	p := &MarketPoller{
		pollInterval: scheduler.IntervalMinute,
		syncInterval: 5 * time.Minute,
		backoffBase:  5 * time.Second,
		backoffMax:   5 * time.Minute,
		evictAfter:   10 * time.Minute,
		flights:      make(map[string]*sync.Mutex),
		backoffs:     make(map[string]*backoffState),
		subs:         make(map[string]map[uuid.UUID]func(prices.PricePoint)),
		watched:      make(map[string]prices.Pair),
		lastUsed:     make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.IsValid(); err != nil {
		return nil, err
	}

	sched, err := tickerScheduler.New(
		tickerScheduler.WithContext(p.ctx),
		tickerScheduler.WithLogger(p.logger),
		tickerScheduler.WithInterval(p.pollInterval),
		tickerScheduler.WithHandler(p.tick),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	p.scheduler = sched

	return p, nil
}

func (p *MarketPoller) Start() error {
	if err := p.tick(); err != nil {
		p.logger.Error("initial tick failed", "error", err)
	}

	return p.scheduler.Start()
}

func (p *MarketPoller) Stop() {
	p.scheduler.Stop()
}

// GetPrice returns the cached point when it is younger than maxStaleness,
// refreshing otherwise. When a refresh fails but an older point exists, the
// old point is returned with stale=true; last-known-good data is never
// silently dropped.
func (p *MarketPoller) GetPrice(pair prices.Pair, maxStaleness time.Duration) (prices.PricePoint, bool, error) {
	if err := pairs.Validate(pair); err != nil {
		return prices.PricePoint{}, false, err
	}
	key := pair.String()
	p.touch(key)

	if entry, ok := p.cache.Get(key); ok && time.Since(entry.FetchedAt) <= maxStaleness {
		return entry.Point, false, nil
	}

	point, err := p.Refresh(pair)
	if err == nil {
		return point, false, nil
	}
	if errors.Is(err, prices.ErrInvalidPair) {
		return prices.PricePoint{}, false, err
	}

	if entry, ok := p.cache.Get(key); ok {
		metrics.StaleReads.Inc()
		return entry.Point, true, nil
	}

	return prices.PricePoint{}, false, err
}

// Refresh re-fetches a pair unconditionally and replaces its cache entry.
// While a rate-limit backoff window for the pair is open it fails fast
// with ErrRateLimited without touching the provider.
func (p *MarketPoller) Refresh(pair prices.Pair) (prices.PricePoint, error) {
	if err := pairs.Validate(pair); err != nil {
		return prices.PricePoint{}, err
	}
	key := pair.String()

	// one in-flight fetch per pair, so cache writes cannot reorder
	flight := p.flight(key)
	flight.Lock()
	defer flight.Unlock()

	if until, ok := p.backoffUntil(key); ok {
		metrics.RefreshTotal.WithLabelValues(key, metrics.ResultRateLimited).Inc()
		return prices.PricePoint{}, errors.Wrap(prices.ErrRateLimited, "backing off until "+until.Format(time.RFC3339))
	}

	point, err := p.provider.Quote(pair)
	if err != nil {
		switch {
		case errors.Is(err, prices.ErrRateLimited):
			delay := p.noteRateLimit(key)
			metrics.RefreshTotal.WithLabelValues(key, metrics.ResultRateLimited).Inc()
			p.logger.Warn("provider throttled, backing off", "pair", key, "delay", delay)
		case errors.Is(err, prices.ErrInvalidPair):
			metrics.RefreshTotal.WithLabelValues(key, metrics.ResultInvalid).Inc()
		default:
			metrics.RefreshTotal.WithLabelValues(key, metrics.ResultUnavailable).Inc()
		}
		return prices.PricePoint{}, err
	}

	p.resetBackoff(key)
	metrics.RefreshTotal.WithLabelValues(key, metrics.ResultOK).Inc()

	stored := p.store(point)
	if !stored {
		if entry, ok := p.cache.Get(key); ok {
			return entry.Point, nil
		}
		return point, nil
	}

	p.notify(point)
	return point, nil
}

// Subscribe registers a callback invoked on every refreshed point for the
// pair and keeps the pair on the periodic refresh cycle.
func (p *MarketPoller) Subscribe(pair prices.Pair, fn func(prices.PricePoint)) (uuid.UUID, error) {
	if err := pairs.Validate(pair); err != nil {
		return uuid.Nil, err
	}
	if fn == nil {
		return uuid.Nil, errors.Wrap(ErrInvalidPollerConfig, "callback cannot be nil")
	}

	key := pair.String()
	id := uuid.New()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs[key] == nil {
		p.subs[key] = make(map[uuid.UUID]func(prices.PricePoint))
	}
	p.subs[key][id] = fn
	p.lastUsed[key] = time.Now()

	return id, nil
}

func (p *MarketPoller) Unsubscribe(pair prices.Pair, id uuid.UUID) {
	key := pair.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	if subs, ok := p.subs[key]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(p.subs, key)
			p.lastUsed[key] = time.Now()
		}
	}
}

// Snapshot returns every cached point.
func (p *MarketPoller) Snapshot() []prices.PricePoint {
	entries := p.cache.Values()
	points := make([]prices.PricePoint, 0, len(entries))
	for _, entry := range entries {
		points = append(points, entry.Point)
	}
	return points
}

// SyncWatchList reloads the persisted watch list immediately instead of
// waiting for the next sync interval.
func (p *MarketPoller) SyncWatchList() error {
	if p.repo == nil {
		return nil
	}

	list, err := p.repo.GetWatchList()
	if err != nil {
		return errors.Wrap(err, "failed to load watch list")
	}

	watched := make(map[string]prices.Pair, len(list))
	for _, wp := range list {
		pair := wp.Pair()
		watched[pair.String()] = pair
	}

	p.mu.Lock()
	p.watched = watched
	p.lastSync = time.Now()
	p.mu.Unlock()

	p.logger.Info("synced watch list", "count", len(watched))
	return nil
}

func (p *MarketPoller) tick() error {
	p.mu.Lock()
	syncDue := p.repo != nil && time.Since(p.lastSync) >= p.syncInterval
	p.mu.Unlock()

	if syncDue {
		if err := p.SyncWatchList(); err != nil {
			p.logger.Error("watch list sync failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	for _, pair := range p.activePairs() {
		wg.Add(1)
		go func(pair prices.Pair) {
			defer wg.Done()
			if _, err := p.Refresh(pair); err != nil {
				p.logger.Warn("scheduled refresh failed", "pair", pair.String(), "error", err)
			}
		}(pair)
	}
	wg.Wait()

	p.evict()
	return nil
}

// activePairs is the union of the persisted watch list and every pair
// someone subscribed to.
func (p *MarketPoller) activePairs() []prices.Pair {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{}, len(p.watched)+len(p.subs))
	active := make([]prices.Pair, 0, len(p.watched)+len(p.subs))

	for key, pair := range p.watched {
		seen[key] = struct{}{}
		active = append(active, pair)
	}
	for key := range p.subs {
		if _, ok := seen[key]; ok {
			continue
		}
		if pair, err := pairs.Parse(key); err == nil {
			active = append(active, pair)
		}
	}
	return active
}

// evict drops cache entries nobody watches, subscribes to, or has read
// within the grace period, to bound memory. Flight mutexes are kept for
// the process lifetime: dropping one while a fetch holds it would let a
// later refresh of the same pair run concurrently on a fresh mutex.
func (p *MarketPoller) evict() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, key := range p.cache.Keys() {
		if _, ok := p.watched[key]; ok {
			continue
		}
		if _, ok := p.subs[key]; ok {
			continue
		}
		if time.Since(p.lastUsed[key]) <= p.evictAfter {
			continue
		}
		p.cache.Delete(key)
		delete(p.lastUsed, key)
		delete(p.backoffs, key)
		p.logger.Debug("evicted idle pair", "pair", key)
	}
	metrics.CachedPairs.Set(float64(p.cache.Len()))
}

// store replaces the whole cache entry. Points older than the cached one
// are dropped so per-pair timestamps never go backwards.
func (p *MarketPoller) store(point prices.PricePoint) bool {
	key := point.Pair.String()

	if existing, ok := p.cache.Get(key); ok && point.Timestamp.Before(existing.Point.Timestamp) {
		p.logger.Debug("dropping out-of-order point", "pair", key,
			"cached", existing.Point.Timestamp, "incoming", point.Timestamp)
		return false
	}

	p.cache.Set(key, Entry{Point: point, FetchedAt: time.Now()})
	p.touch(key)
	metrics.CachedPairs.Set(float64(p.cache.Len()))
	return true
}

func (p *MarketPoller) notify(point prices.PricePoint) {
	key := point.Pair.String()

	p.mu.Lock()
	fns := make([]func(prices.PricePoint), 0, len(p.subs[key]))
	for _, fn := range p.subs[key] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(point)
	}

	if p.publisher != nil {
		data, err := json.Marshal(point)
		if err == nil {
			if err := p.publisher.Publish(data); err != nil {
				p.logger.Error("failed to publish price point", "pair", key, "error", err)
			}
		}
	}

	if p.history != nil {
		if err := p.history.AppendPricePoint(models.FromPoint(point)); err != nil {
			p.logger.Error("failed to persist price point", "pair", key, "error", err)
		}
	}

	if p.snapshots != nil {
		if err := p.snapshots.Record(p.ctx, point); err != nil {
			p.logger.Error("failed to record price snapshot", "pair", key, "error", err)
		}
	}
}

func (p *MarketPoller) flight(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flights[key] == nil {
		p.flights[key] = &sync.Mutex{}
	}
	return p.flights[key]
}

func (p *MarketPoller) touch(key string) {
	p.mu.Lock()
	p.lastUsed[key] = time.Now()
	p.mu.Unlock()
}

func (p *MarketPoller) backoffUntil(key string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.backoffs[key]
	if !ok || !time.Now().Before(state.until) {
		return time.Time{}, false
	}
	return state.until, true
}

func (p *MarketPoller) noteRateLimit(key string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.backoffs[key]
	if !ok {
		state = &backoffState{}
		p.backoffs[key] = state
	}

	delay := p.backoffBase << state.attempts
	if delay > p.backoffMax {
		delay = p.backoffMax
	} else {
		state.attempts++
	}
	state.until = time.Now().Add(delay)
	return delay
}

func (p *MarketPoller) resetBackoff(key string) {
	p.mu.Lock()
	delete(p.backoffs, key)
	p.mu.Unlock()
}
