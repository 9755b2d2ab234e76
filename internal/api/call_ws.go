package api

import (
	"net/http"

	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type stateMessage struct {
	Type string        `json:"type"`
	Call *calling.Call `json:"call"`
}

// StreamCallState pushes a call snapshot (or null) to the client on every
// engine transition until the client disconnects.
func (h *CallHandler) StreamCallState(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Errorf("upgrade websocket failed: %v", err)
		return
	}
	defer conn.Close()

	// Buffered so a slow client never blocks the engine's listener fan-out.
	// When the buffer fills, intermediate states are dropped; the client
	// always converges on the latest one it managed to read.
	updates := make(chan *calling.Call, 16)
	id := h.mgr.AddListener(func(call *calling.Call) {
		select {
		case updates <- call:
		default:
		}
	})
	defer h.mgr.RemoveListener(id)

	_ = conn.WriteJSON(stateMessage{Type: "ready"})
	if err := conn.WriteJSON(stateMessage{Type: "state", Call: h.mgr.Current()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case call := <-updates:
			if err := conn.WriteJSON(stateMessage{Type: "state", Call: call}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
