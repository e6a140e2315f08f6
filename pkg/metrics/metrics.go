package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

const (
	ResultOK          = "ok"
	ResultRateLimited = "rate_limited"
	ResultUnavailable = "unavailable"
	ResultInvalid     = "invalid_pair"
)

var (
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinwatch",
		Name:      "refresh_total",
		Help:      "Price refresh attempts by pair and result.",
	}, []string{"pair", "result"})

	StaleReads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinwatch",
		Name:      "stale_reads_total",
		Help:      "Price reads served from a stale cache entry.",
	})

	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinwatch",
		Name:      "alerts_fired_total",
		Help:      "Alerts that crossed their threshold and fired.",
	})

	CachedPairs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coinwatch",
		Name:      "cached_pairs",
		Help:      "Pairs currently held in the price cache.",
	})
)

// Handler exposes the default prometheus registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
