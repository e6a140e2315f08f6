package controller

import (
	"net/http"
	"strings"
	"sync"

	"coinwatch/pkg/pairs"
	"coinwatch/pkg/types/prices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSPrices streams refreshed points for the pairs named in the "pairs"
// query parameter over a websocket, e.g. ?pairs=BTC-USD,ETH-USD.
// Subscriptions live exactly as long as the connection.
func (c *Controller) WSPrices(ctx *gin.Context) {
	if c.poller == nil {
		serviceUnavailable(ctx, "price service not available")
		return
	}

	raw := ctx.Query("pairs")
	if raw == "" {
		badRequest(ctx, "pairs query parameter is required")
		return
	}

	var list []prices.Pair
	for _, part := range strings.Split(raw, ",") {
		pair, err := pairs.Parse(part)
		if err != nil {
			badRequestWithDetails(ctx, "invalid pair", err.Error())
			return
		}
		list = append(list, pair)
	}
	list = pairs.Dedupe(list)

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(point prices.PricePoint) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(priceResponse(point, false))
	}

	type subscription struct {
		pair prices.Pair
		id   uuid.UUID
	}
	subs := make([]subscription, 0, len(list))
	for _, pair := range list {
		id, err := c.poller.Subscribe(pair, send)
		if err != nil {
			continue
		}
		subs = append(subs, subscription{pair: pair, id: id})
	}
	defer func() {
		for _, sub := range subs {
			c.poller.Unsubscribe(sub.pair, sub.id)
		}
	}()

	// the read loop exists only to notice the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
