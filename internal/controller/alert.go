package controller

import (
	"net/http"
	"strconv"

	"coinwatch/internal/models"
	"coinwatch/internal/repo"
	"coinwatch/pkg/pairs"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type AlertRequest struct {
	Base      string  `json:"base"      binding:"required"`
	Quote     string  `json:"quote"     binding:"required"`
	Threshold float64 `json:"threshold" binding:"required"`
	Direction string  `json:"direction" binding:"required"`
	Repeating bool    `json:"repeating"`
}

func (c *Controller) ListAlerts(ctx *gin.Context) {
	alerts, err := c.repo.ListAlerts()
	if err != nil {
		internalError(ctx, "failed to fetch alerts")
		return
	}
	ctx.JSON(http.StatusOK, alerts)
}

func (c *Controller) GetAlert(ctx *gin.Context) {
	id, err := alertID(ctx)
	if err != nil {
		badRequest(ctx, "invalid alert id")
		return
	}

	alert, err := c.repo.GetAlertByID(id)
	if err != nil {
		if errors.Is(err, repo.ErrAlertNotFound) {
			notFound(ctx, "alert not found")
			return
		}
		internalError(ctx, "failed to fetch alert")
		return
	}
	ctx.JSON(http.StatusOK, alert)
}

func (c *Controller) CreateAlert(ctx *gin.Context) {
	var req AlertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequestWithDetails(ctx, "invalid request body", err.Error())
		return
	}

	pair, err := pairs.New(req.Base, req.Quote)
	if err != nil {
		badRequestWithDetails(ctx, "invalid pair", err.Error())
		return
	}
	if req.Threshold <= 0 {
		badRequest(ctx, "threshold must be positive")
		return
	}

	alert := &models.Alert{
		Base:      pair.Base,
		Quote:     pair.Quote,
		Threshold: req.Threshold,
		Direction: req.Direction,
		Repeating: req.Repeating,
	}
	if err := c.repo.CreateAlert(alert); err != nil {
		if errors.Is(err, repo.ErrInvalidAlertDirection) {
			badRequest(ctx, "direction must be above or below")
			return
		}
		internalError(ctx, "failed to create alert")
		return
	}

	c.syncAlerts()
	ctx.JSON(http.StatusCreated, alert)
}

func (c *Controller) DeleteAlert(ctx *gin.Context) {
	id, err := alertID(ctx)
	if err != nil {
		badRequest(ctx, "invalid alert id")
		return
	}

	if err := c.repo.DeleteAlert(id); err != nil {
		if errors.Is(err, repo.ErrAlertNotFound) {
			notFound(ctx, "alert not found")
			return
		}
		internalError(ctx, "failed to delete alert")
		return
	}

	c.syncAlerts()
	ctx.JSON(http.StatusOK, gin.H{"message": "alert deleted"})
}

// ArmAlert re-arms a fired one-shot alert.
func (c *Controller) ArmAlert(ctx *gin.Context) {
	id, err := alertID(ctx)
	if err != nil {
		badRequest(ctx, "invalid alert id")
		return
	}

	if _, err := c.repo.GetAlertByID(id); err != nil {
		if errors.Is(err, repo.ErrAlertNotFound) {
			notFound(ctx, "alert not found")
			return
		}
		internalError(ctx, "failed to fetch alert")
		return
	}

	if err := c.repo.ArmAlert(id); err != nil {
		internalError(ctx, "failed to arm alert")
		return
	}

	c.syncAlerts()
	ctx.JSON(http.StatusOK, gin.H{"message": "alert armed"})
}

func (c *Controller) syncAlerts() {
	if c.alerts == nil {
		return
	}
	_ = c.alerts.Sync()
}

func alertID(ctx *gin.Context) (int64, error) {
	return strconv.ParseInt(ctx.Param("id"), 10, 64)
}
