package controller

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinwatch/internal/models"
	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"

	"github.com/gin-gonic/gin"
)

// ExportHistory downloads the stored points for a pair as CSV or JSON.
func (c *Controller) ExportHistory(ctx *gin.Context) {
	if c.history == nil {
		serviceUnavailable(ctx, "history service not available")
		return
	}

	format := strings.ToLower(ctx.DefaultQuery("format", "csv"))
	if format != "csv" && format != "json" {
		badRequest(ctx, "format must be csv or json")
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

	filename := fmt.Sprintf("%s_history_%s.%s", pair.String(), time.Now().Format("2006-01-02"), format)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if format == "json" {
		ctx.Header("Content-Type", "application/json")
		ctx.JSON(http.StatusOK, points)
		return
	}

	ctx.Data(http.StatusOK, "text/csv", historyToCSV(points))
}

// ExportWatchList downloads the watch list as CSV or JSON.
func (c *Controller) ExportWatchList(ctx *gin.Context) {
	format := strings.ToLower(ctx.DefaultQuery("format", "csv"))
	if format != "csv" && format != "json" {
		badRequest(ctx, "format must be csv or json")
		return
	}

	list, err := c.repo.GetWatchList()
	if err != nil {
		internalError(ctx, "failed to fetch watch list")
		return
	}

	filename := fmt.Sprintf("watchlist_%s.%s", time.Now().Format("2006-01-02"), format)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if format == "json" {
		ctx.Header("Content-Type", "application/json")
		ctx.JSON(http.StatusOK, list)
		return
	}

	ctx.Data(http.StatusOK, "text/csv", watchListToCSV(list))
}

func historyToCSV(points []prices.PricePoint) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"base", "quote", "price", "source", "timestamp"})
	for _, point := range points {
		_ = w.Write([]string{
			point.Pair.Base,
			point.Pair.Quote,
			strconv.FormatFloat(point.Price, 'f', -1, 64),
			point.Source,
			point.Timestamp.Format(time.RFC3339),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func watchListToCSV(list []models.WatchPair) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"base", "quote", "created_at"})
	for _, wp := range list {
		_ = w.Write([]string{wp.Base, wp.Quote, wp.CreatedAt.Format(time.RFC3339)})
	}
	w.Flush()
	return buf.Bytes()
}
