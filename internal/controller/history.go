package controller

import (
	"net/http"
	"strconv"
	"time"

	"coinwatch/internal/service"
	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const defaultHistoryWindow = 24 * time.Hour

// GetHistory returns stored points for a pair within [from, to],
// oldest first. Both bounds accept RFC 3339 or unix seconds and default
// to the last 24 hours.
func (c *Controller) GetHistory(ctx *gin.Context) {
	if c.history == nil {
		serviceUnavailable(ctx, "history service not available")
		return
	}

	pair, err := pairs.New(ctx.Param("base"), ctx.Param("quote"))
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}

	from, to, err := historyRange(ctx)
	if err != nil {
		badRequestWithDetails(ctx, "invalid time range", err.Error())
		return
	}

	points, err := c.history.GetHistory(pair, from, to)
	if err != nil {
		historyError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, points)
}

func historyError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTimeRange):
		badRequestWithDetails(ctx, "invalid time range", err.Error())
	case errors.Is(err, prices.ErrInvalidPair):
		badRequestWithDetails(ctx, "invalid pair", err.Error())
	case errors.Is(err, prices.ErrRateLimited):
		tooManyRequests(ctx, "provider rate limited, retry later")
	case errors.Is(err, prices.ErrProviderUnavailable):
		serviceUnavailable(ctx, "price provider unavailable")
	default:
		internalError(ctx, "failed to fetch history")
	}
}

func historyRange(ctx *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.Add(-defaultHistoryWindow)
	to := now

	var err error
	if raw := ctx.Query("from"); raw != "" {
		if from, err = parseTime(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if to, err = parseTime(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func parseTime(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "expected RFC 3339 or unix seconds")
	}
	return t, nil
}
