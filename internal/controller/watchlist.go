package controller

import (
	"net/http"

	"coinwatch/internal/models"
	"coinwatch/internal/repo"
	"coinwatch/pkg/pairs"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type WatchPairRequest struct {
	Base  string `json:"base"  binding:"required"`
	Quote string `json:"quote" binding:"required"`
}

func (c *Controller) ListWatchList(ctx *gin.Context) {
	list, err := c.repo.GetWatchList()
	if err != nil {
		internalError(ctx, "failed to fetch watch list")
		return
	}
	ctx.JSON(http.StatusOK, list)
}

func (c *Controller) AddWatchPair(ctx *gin.Context) {
	var req WatchPairRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequestWithDetails(ctx, "invalid request body", err.Error())
		return
	}

	pair, err := pairs.New(req.Base, req.Quote)
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}

	wp := &models.WatchPair{Base: pair.Base, Quote: pair.Quote}
	if err := c.repo.AddWatchPair(wp); err != nil {
		if errors.Is(err, repo.ErrDuplicateWatchPair) {
			conflict(ctx, "pair already watched")
			return
		}
		internalError(ctx, "failed to add watch pair")
		return
	}

	c.syncPoller()
	ctx.JSON(http.StatusCreated, wp)
}

func (c *Controller) RemoveWatchPair(ctx *gin.Context) {
	pair, err := pairs.New(ctx.Param("base"), ctx.Param("quote"))
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}

	if err := c.repo.RemoveWatchPair(pair.Base, pair.Quote); err != nil {
		if errors.Is(err, repo.ErrWatchPairNotFound) {
			notFound(ctx, "pair not watched")
			return
		}
		internalError(ctx, "failed to remove watch pair")
		return
	}

	c.syncPoller()
	ctx.JSON(http.StatusOK, gin.H{"message": "pair removed"})
}

// syncPoller pushes watch list changes to the poller immediately so the
// next cycle already covers them.
func (c *Controller) syncPoller() {
	if c.poller == nil {
		return
	}
	_ = c.poller.SyncWatchList()
}
