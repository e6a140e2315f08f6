package controller

import (
	"time"

	"coinwatch/internal/repo"
	"coinwatch/internal/service"

	"github.com/pkg/errors"
)

var ErrNilRepository = errors.New("repository cannot be nil")

const defaultMaxStaleness = 30 * time.Second

type Controller struct {
	repo         *repo.Repository
	poller       *service.MarketPoller
	history      *service.HistoryService
	alerts       *service.AlertService
	maxStaleness time.Duration
}

type Option func(*Controller)

func WithRepository(r *repo.Repository) Option {
	return func(c *Controller) {
		c.repo = r
	}
}

func WithPoller(p *service.MarketPoller) Option {
	return func(c *Controller) {
		c.poller = p
	}
}

func WithHistoryService(h *service.HistoryService) Option {
	return func(c *Controller) {
		c.history = h
	}
}

func WithAlertService(a *service.AlertService) Option {
	return func(c *Controller) {
		c.alerts = a
	}
}

func WithMaxStaleness(d time.Duration) Option {
	return func(c *Controller) {
		c.maxStaleness = d
	}
}

func New(opts ...Option) (*Controller, error) {
	c := &Controller{
		maxStaleness: defaultMaxStaleness,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.repo == nil {
		return nil, ErrNilRepository
	}
	return c, nil
}
