package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medihelp/carewire/internal/pairsync"
)

// handleChatStream serves one conversation as a server-sent event
// stream. Each connection owns a synchronizer for the pair in the path;
// history rows arrive first, then live inserts as they commit.
func handleChatStream(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		a, b := c.Param("a"), c.Param("b")

		writeSSE(c.Writer, "connected", map[string]string{"pair_a": a, "pair_b": b})
		c.Writer.Flush()

		ctx := c.Request.Context()
		conv := pairsync.New(opts.Store, opts.Feed, opts.Logger, a, b)
		conv.Start(ctx)
		defer conv.Close()

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		// Nothing is emitted until the historical read settles; the
		// merged order is only stable from that point on.
		sent := 0
		loadedSent := false

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-conv.Updates():
				if err := conv.Err(); err != nil {
					writeSSE(c.Writer, "error", map[string]string{"error": err.Error()})
					c.Writer.Flush()
					return
				}
				if !conv.Loaded() {
					continue
				}

				msgs := conv.Messages()
				for ; sent < len(msgs); sent++ {
					writeSSE(c.Writer, "message", msgs[sent])
				}
				if !loadedSent {
					writeSSE(c.Writer, "loaded", map[string]int{"count": sent})
					loadedSent = true
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
