package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wiretrace/wiretrace/internal/pkg/logger"
	"github.com/wiretrace/wiretrace/internal/stream"
)

type StreamHandler struct {
	broadcaster *stream.Broadcaster
}

func NewStreamHandler(broadcaster *stream.Broadcaster) *StreamHandler {
	return &StreamHandler{broadcaster: broadcaster}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local-only collector; the viewer connects from an app origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SSE streams broadcast frames as server-sent events. The first frame
// is always the connected acknowledgement queued at subscribe time.
func (h *StreamHandler) SSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub)

	c.Stream(func(w io.Writer) bool {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", frame)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// WebSocket carries the same frames over a websocket connection.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub)

	// Reader goroutine: its only job is noticing the peer went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.broadcaster.Unsubscribe(sub)
				return
			}
		}
	}()

	for frame := range sub.Frames() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}
