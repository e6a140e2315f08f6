package handler

import (
	"net/http"
	"time"

	"coinwatch/internal/controller"
	"coinwatch/internal/repo"
	"coinwatch/internal/service"
	"coinwatch/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

var (
	ErrNilEngine     = errors.New("engine is required")
	ErrNilRepository = errors.New("repository is required")
)

type Handler struct {
	engine       *gin.Engine
	repository   *repo.Repository
	poller       *service.MarketPoller
	historySvc   *service.HistoryService
	alertSvc     *service.AlertService
	priceCh      <-chan []byte
	alertCh      <-chan []byte
	maxStaleness time.Duration
}

func (h *Handler) IsValid() error {
	if h.engine == nil {
		return ErrNilEngine
	}
	if h.repository == nil {
		return ErrNilRepository
	}
	return nil
}

type Option func(*Handler)

func WithEngine(engine *gin.Engine) Option {
	return func(h *Handler) {
		h.engine = engine
	}
}

func WithRepository(repository *repo.Repository) Option {
	return func(h *Handler) {
		h.repository = repository
	}
}

func WithPoller(p *service.MarketPoller) Option {
	return func(h *Handler) {
		h.poller = p
	}
}

func WithHistoryService(svc *service.HistoryService) Option {
	return func(h *Handler) {
		h.historySvc = svc
	}
}

func WithAlertService(svc *service.AlertService) Option {
	return func(h *Handler) {
		h.alertSvc = svc
	}
}

func WithPriceChannel(ch <-chan []byte) Option {
	return func(h *Handler) {
		h.priceCh = ch
	}
}

func WithAlertChannel(ch <-chan []byte) Option {
	return func(h *Handler) {
		h.alertCh = ch
	}
}

func WithMaxStaleness(d time.Duration) Option {
	return func(h *Handler) {
		h.maxStaleness = d
	}
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.IsValid(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) Setup() error {
	ctrlOpts := []controller.Option{
		controller.WithRepository(h.repository),
		controller.WithPoller(h.poller),
		controller.WithHistoryService(h.historySvc),
		controller.WithAlertService(h.alertSvc),
	}
	if h.maxStaleness > 0 {
		ctrlOpts = append(ctrlOpts, controller.WithMaxStaleness(h.maxStaleness))
	}
	ctrl, err := controller.New(ctrlOpts...)
	if err != nil {
		return err
	}

	h.engine.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.engine.GET("/metrics", metrics.Handler())

	api := h.engine.Group("/api")

	prices := api.Group("/prices")
	if h.priceCh != nil {
		prices.GET("/stream", controller.SSEStream("prices", h.priceCh))
	}
	prices.GET("", ctrl.ListPrices)
	prices.GET("/ws", ctrl.WSPrices)
	prices.GET("/:base/:quote", ctrl.GetPrice)
	prices.POST("/:base/:quote/refresh", ctrl.RefreshPrice)

	watchlist := api.Group("/watchlist")
	watchlist.GET("", ctrl.ListWatchList)
	watchlist.POST("", ctrl.AddWatchPair)
	watchlist.GET("/export", ctrl.ExportWatchList)
	watchlist.DELETE("/:base/:quote", ctrl.RemoveWatchPair)

	alerts := api.Group("/alerts")
	if h.alertCh != nil {
		alerts.GET("/stream", controller.SSEStream("alerts", h.alertCh))
	}
	alerts.GET("", ctrl.ListAlerts)
	alerts.POST("", ctrl.CreateAlert)
	alerts.GET("/:id", ctrl.GetAlert)
	alerts.POST("/:id/arm", ctrl.ArmAlert)
	alerts.DELETE("/:id", ctrl.DeleteAlert)

	history := api.Group("/history")
	history.GET("/:base/:quote", ctrl.GetHistory)
	history.GET("/:base/:quote/export", ctrl.ExportHistory)

	return nil
}
