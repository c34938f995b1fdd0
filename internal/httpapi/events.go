package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const sseKeepAlive = 15 * time.Second

// handleEvents streams bus events as server-sent events until the client leaves.
func (s *Server) handleEvents(c *gin.Context) {
	events, unsub := s.d.Bus.Subscribe(64)
	defer unsub()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	// Send headers now so clients see the stream open before the first event.
	c.Writer.Flush()

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
