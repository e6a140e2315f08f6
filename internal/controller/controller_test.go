package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"coinwatch/internal/models"
	"coinwatch/internal/repo"
	"coinwatch/internal/service"
	"coinwatch/pkg/integrations/memcache"
	"coinwatch/pkg/types/prices"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type stubProvider struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (p *stubProvider) set(price float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
	p.err = err
}

func (p *stubProvider) Quote(pair prices.Pair) (prices.PricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return prices.PricePoint{}, p.err
	}
	return prices.PricePoint{Pair: pair, Price: p.price, Timestamp: time.Now(), Source: "stub"}, nil
}

func (p *stubProvider) QuoteMany(list ...prices.Pair) (map[prices.Pair]prices.PricePoint, error) {
	out := make(map[prices.Pair]prices.PricePoint, len(list))
	for _, pair := range list {
		point, err := p.Quote(pair)
		if err != nil {
			return nil, err
		}
		out[pair] = point
	}
	return out, nil
}

func (p *stubProvider) History(prices.Pair, time.Time, time.Time) ([]prices.PricePoint, error) {
	return nil, nil
}

type ControllerTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	repo     *repo.Repository
	provider *stubProvider

	createdAlert *models.Alert
}

func (s *ControllerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	s.db = db

	repository, err := repo.New(db)
	s.Require().NoError(err)
	s.Require().NoError(repository.Migrate())
	s.repo = repository

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.provider = &stubProvider{price: 64000}

	poller, err := service.NewMarketPoller(
		service.WithPollerContext(context.Background()),
		service.WithPollerLogger(logger),
		service.WithPollerProvider(s.provider),
		service.WithPollerCache(memcache.New[string, service.Entry]()),
		service.WithPollerRepo(repository),
		service.WithPollerBackoffBase(time.Minute),
	)
	s.Require().NoError(err)

	history, err := service.NewHistoryService(
		service.WithHistoryContext(context.Background()),
		service.WithHistoryLogger(logger),
		service.WithHistoryStore(repository),
	)
	s.Require().NoError(err)

	alerts, err := service.NewAlertService(
		service.WithAlertContext(context.Background()),
		service.WithAlertLogger(logger),
		service.WithAlertStore(repository),
		service.WithAlertPoller(poller),
	)
	s.Require().NoError(err)

	ctrl, err := New(
		WithRepository(repository),
		WithPoller(poller),
		WithHistoryService(history),
		WithAlertService(alerts),
	)
	s.Require().NoError(err)

	s.router = gin.New()
	api := s.router.Group("/api")

	pricesGroup := api.Group("/prices")
	pricesGroup.GET("", ctrl.ListPrices)
	pricesGroup.GET("/:base/:quote", ctrl.GetPrice)
	pricesGroup.POST("/:base/:quote/refresh", ctrl.RefreshPrice)

	watchlist := api.Group("/watchlist")
	watchlist.GET("", ctrl.ListWatchList)
	watchlist.POST("", ctrl.AddWatchPair)
	watchlist.GET("/export", ctrl.ExportWatchList)
	watchlist.DELETE("/:base/:quote", ctrl.RemoveWatchPair)

	alertsGroup := api.Group("/alerts")
	alertsGroup.GET("", ctrl.ListAlerts)
	alertsGroup.POST("", ctrl.CreateAlert)
	alertsGroup.GET("/:id", ctrl.GetAlert)
	alertsGroup.POST("/:id/arm", ctrl.ArmAlert)
	alertsGroup.DELETE("/:id", ctrl.DeleteAlert)

	historyGroup := api.Group("/history")
	historyGroup.GET("/:base/:quote", ctrl.GetHistory)
	historyGroup.GET("/:base/:quote/export", ctrl.ExportHistory)
}

func (s *ControllerTestSuite) request(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ControllerTestSuite) Test01_GetPrice() {
	w := s.request(http.MethodGet, "/api/prices/BTC/USD", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp PriceResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(64000.0, resp.Price)
	s.False(resp.Stale)
}

func (s *ControllerTestSuite) Test02_GetPrice_InvalidPair() {
	w := s.request(http.MethodGet, "/api/prices/BTC/XYZ", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/api/prices/BTC/USD?max_staleness=bogus", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ControllerTestSuite) Test03_GetPrice_StaleFallback() {
	s.provider.set(0, prices.ErrProviderUnavailable)
	defer s.provider.set(64000, nil)

	w := s.request(http.MethodGet, "/api/prices/BTC/USD?max_staleness=0", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp PriceResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.Stale)
	s.Equal(64000.0, resp.Price)
}

func (s *ControllerTestSuite) Test04_GetPrice_ProviderDownNoCache() {
	s.provider.set(0, prices.ErrProviderUnavailable)
	defer s.provider.set(64000, nil)

	w := s.request(http.MethodGet, "/api/prices/SOL/USD", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *ControllerTestSuite) Test05_GetPrice_RateLimitedNoCache() {
	s.provider.set(0, prices.ErrRateLimited)
	defer s.provider.set(64000, nil)

	w := s.request(http.MethodGet, "/api/prices/DOGE/USD", nil)
	s.Equal(http.StatusTooManyRequests, w.Code)
}

func (s *ControllerTestSuite) Test06_RefreshPrice() {
	s.provider.set(65000, nil)

	w := s.request(http.MethodPost, "/api/prices/BTC/USD/refresh", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp PriceResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(65000.0, resp.Price)
}

func (s *ControllerTestSuite) Test07_ListPrices() {
	w := s.request(http.MethodGet, "/api/prices", nil)
	s.Equal(http.StatusOK, w.Code)

	var points []prices.PricePoint
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &points))
	s.NotEmpty(points)
}

func (s *ControllerTestSuite) Test08_Watchlist_Add() {
	w := s.request(http.MethodPost, "/api/watchlist", WatchPairRequest{Base: "btc", Quote: "usd"})
	s.Equal(http.StatusCreated, w.Code)

	// canonicalized before storage
	var wp models.WatchPair
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &wp))
	s.Equal("BTC", wp.Base)
	s.Equal("USD", wp.Quote)

	w = s.request(http.MethodPost, "/api/watchlist", WatchPairRequest{Base: "BTC", Quote: "USD"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.request(http.MethodPost, "/api/watchlist", WatchPairRequest{Base: "BTC", Quote: "BTC"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ControllerTestSuite) Test09_Watchlist_ListAndRemove() {
	w := s.request(http.MethodGet, "/api/watchlist", nil)
	s.Equal(http.StatusOK, w.Code)

	var list []models.WatchPair
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Len(list, 1)

	w = s.request(http.MethodDelete, "/api/watchlist/BTC/USD", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodDelete, "/api/watchlist/BTC/USD", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ControllerTestSuite) Test10_Alert_Create() {
	w := s.request(http.MethodPost, "/api/alerts", AlertRequest{
		Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove,
	})
	s.Equal(http.StatusCreated, w.Code)

	var alert models.Alert
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &alert))
	s.True(alert.Armed)
	s.createdAlert = &alert

	w = s.request(http.MethodPost, "/api/alerts", AlertRequest{
		Base: "BTC", Quote: "USD", Threshold: 70000, Direction: "sideways",
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPost, "/api/alerts", AlertRequest{
		Base: "BTC", Quote: "USD", Threshold: -1, Direction: models.DirectionAbove,
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ControllerTestSuite) Test11_Alert_GetArmDelete() {
	s.Require().NotNil(s.createdAlert)
	id := s.createdAlert.ID

	w := s.request(http.MethodGet, fmt.Sprintf("/api/alerts/%d", id), nil)
	s.Equal(http.StatusOK, w.Code)

	s.Require().NoError(s.repo.DisarmAlert(id, time.Now()))

	w = s.request(http.MethodPost, fmt.Sprintf("/api/alerts/%d/arm", id), nil)
	s.Equal(http.StatusOK, w.Code)

	stored, err := s.repo.GetAlertByID(id)
	s.Require().NoError(err)
	s.True(stored.Armed)

	w = s.request(http.MethodDelete, fmt.Sprintf("/api/alerts/%d", id), nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, fmt.Sprintf("/api/alerts/%d", id), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ControllerTestSuite) Test12_History() {
	now := time.Now()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.repo.AppendPricePoint(&models.PricePoint{
			Base: "BTC", Quote: "USD",
			Price:     64000 + float64(i),
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		}))
	}

	w := s.request(http.MethodGet, "/api/history/BTC/USD", nil)
	s.Equal(http.StatusOK, w.Code)

	var points []prices.PricePoint
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &points))
	s.Len(points, 3)

	from := now.Add(-time.Hour).Unix()
	w = s.request(http.MethodGet, fmt.Sprintf("/api/history/BTC/USD?from=%d", from), nil)
	s.Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &points))
	s.Len(points, 2)
}

func (s *ControllerTestSuite) Test13_History_InvalidRange() {
	w := s.request(http.MethodGet, "/api/history/BTC/USD?from=zzz", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	now := time.Now()
	path := fmt.Sprintf("/api/history/BTC/USD?from=%d&to=%d", now.Unix(), now.Add(-time.Hour).Unix())
	w = s.request(http.MethodGet, path, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ControllerTestSuite) Test14_ExportHistory() {
	w := s.request(http.MethodGet, "/api/history/BTC/USD/export?format=csv", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	s.Equal("base,quote,price,source,timestamp", strings.TrimSpace(lines[0]))
	s.Len(lines, 4)

	w = s.request(http.MethodGet, "/api/history/BTC/USD/export?format=xml", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ControllerTestSuite) Test15_ExportWatchList() {
	s.Require().NoError(s.repo.AddWatchPair(&models.WatchPair{Base: "ETH", Quote: "USD"}))

	w := s.request(http.MethodGet, "/api/watchlist/export?format=json", nil)
	s.Equal(http.StatusOK, w.Code)

	var list []models.WatchPair
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Len(list, 1)
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}
