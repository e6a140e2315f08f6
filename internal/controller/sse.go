package controller

import (
	"io"

	"github.com/gin-gonic/gin"
)

// SSEStream is a Server-Sent Events endpoint relaying raw JSON messages
// from a fan-out channel under the given event name.
func SSEStream(event string, ch <-chan []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case msg, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(event, string(msg))
				c.Writer.Flush()
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
