package stream

import (
	"collaborative-spec-editor/internal/broker"
	"collaborative-spec-editor/internal/errors"
	"io"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Broker interface {
	Subscribe(filter broker.Filter, lastEventID string) (*broker.Subscription, error)
}

// Handler bridges the broker to server-sent-event connections. Heartbeats
// and reconnect tokens are transport concerns handled here, not in the
// broker itself.
type Handler struct {
	broker    Broker
	heartbeat time.Duration
	log       zerolog.Logger
}

func NewHandler(b Broker, heartbeat time.Duration, log zerolog.Logger) *Handler {
	return &Handler{broker: b, heartbeat: heartbeat, log: log}
}

// Stream opens a long-lived SSE connection scoped to a workspace. A client
// reconnecting passes its last received envelope id (Last-Event-ID header or
// lastEventId query param) and missed envelopes are replayed first.
func (h *Handler) Stream(c *gin.Context) {
	workspaceID := c.Query("workspaceId")
	if workspaceID == "" {
		c.Error(errors.BadRequest("workspaceId is required", nil))
		return
	}

	filter := broker.Filter{
		WorkspaceID: workspaceID,
		Topic:       c.Query("topic"),
	}
	if sectionID := c.Query("sectionId"); sectionID != "" {
		filter.ResourceID = "section:" + sectionID
	} else if documentID := c.Query("documentId"); documentID != "" {
		filter.ResourceID = "document:" + documentID
	}

	lastEventID := c.GetHeader("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.Query("lastEventId")
	}

	sub, err := h.broker.Subscribe(filter, lastEventID)
	if err != nil {
		c.Error(errors.BadRequest("Invalid subscription", err))
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if sub.ReplayGap {
		// the resume point fell out of the retention window, tell the
		// client to re-fetch current state instead of trusting replay
		sse.Encode(c.Writer, sse.Event{
			Event: "stream.gap",
			Data:  gin.H{"message": "replay window exceeded, re-fetch current state"},
		})
		c.Writer.Flush()
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case env, ok := <-sub.C:
			if !ok {
				// broker disconnected us (shutdown or backpressure),
				// the client reconnects with its last event id
				return false
			}
			sse.Encode(w, sse.Event{
				Id:    env.ID,
				Event: env.Topic,
				Data:  env,
			})
			return true
		case <-ticker.C:
			sse.Encode(w, sse.Event{
				Event: "heartbeat",
				Data:  gin.H{"time": time.Now().UTC()},
			})
			return true
		case <-clientGone:
			return false
		}
	})
}
