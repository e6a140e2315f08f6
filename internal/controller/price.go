package controller

import (
	"net/http"
	"strconv"
	"time"

	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type PriceResponse struct {
	Pair      prices.Pair `json:"pair"`
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source,omitempty"`
	Stale     bool        `json:"stale"`
}

func priceResponse(point prices.PricePoint, stale bool) PriceResponse {
	return PriceResponse{
		Pair:      point.Pair,
		Price:     point.Price,
		Timestamp: point.Timestamp,
		Source:    point.Source,
		Stale:     stale,
	}
}

// ListPrices returns every currently cached price.
func (c *Controller) ListPrices(ctx *gin.Context) {
	if c.poller == nil {
		serviceUnavailable(ctx, "price service not available")
		return
	}
	ctx.JSON(http.StatusOK, c.poller.Snapshot())
}

// GetPrice returns the price for one pair, honoring the max_staleness
// query parameter (seconds, or a Go duration like "45s").
func (c *Controller) GetPrice(ctx *gin.Context) {
	if c.poller == nil {
		serviceUnavailable(ctx, "price service not available")
		return
	}

	pair, err := pairs.New(ctx.Param("base"), ctx.Param("quote"))
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}

	maxStaleness := c.maxStaleness
	if raw := ctx.Query("max_staleness"); raw != "" {
		maxStaleness, err = parseStaleness(raw)
		if err != nil {
			badRequest(ctx, "max_staleness must be seconds or a duration")
			return
		}
	}

	point, stale, err := c.poller.GetPrice(pair, maxStaleness)
	if err != nil {
		priceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, priceResponse(point, stale))
}

// RefreshPrice bypasses the cache and fetches the pair right now.
func (c *Controller) RefreshPrice(ctx *gin.Context) {
	if c.poller == nil {
		serviceUnavailable(ctx, "price service not available")
		return
	}

	pair, err := pairs.New(ctx.Param("base"), ctx.Param("quote"))
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}

	point, err := c.poller.Refresh(pair)
	if err != nil {
		priceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, priceResponse(point, false))
}

func priceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, prices.ErrInvalidPair):
		badRequestWithDetails(ctx, "invalid pair", err.Error())
	case errors.Is(err, prices.ErrRateLimited):
		tooManyRequests(ctx, "provider rate limited, retry later")
	default:
		serviceUnavailable(ctx, "price provider unavailable")
	}
}

func parseStaleness(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, errors.New("negative staleness")
		}
		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, errors.New("unparsable staleness")
	}
	return d, nil
}
