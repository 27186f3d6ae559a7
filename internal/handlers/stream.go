package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Prathaban-G/ecommerce/internal/platform/requestctx"
)

const streamMessageState = "state"

type streamMessage struct {
	Type  string           `json:"type"`
	State viewStatePayload `json:"state"`
}

// stream pushes the session's render payload over a websocket on every
// change. The session is pinned against idle eviction while connected.
func (h *SessionHandlers) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	sessionID := chi.URLParam(r, sessionIDParam)
	view, release, err := h.sessions.Hold(sessionID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return
	}
	defer conn.Close()

	logger := requestctx.Logger(ctx)
	updates, unsubscribe := view.Subscribe()
	defer unsubscribe()

	// The reader only drains control frames and notices disconnects.
	disconnected := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeState(conn, buildViewStatePayload(view.State())); err != nil {
		logger.Debug("stream write failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(h.writeWait))
				return
			}
			if err := h.writeState(conn, buildViewStatePayload(state)); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				return
			}
		case <-disconnected:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *SessionHandlers) writeState(conn *websocket.Conn, payload viewStatePayload) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return conn.WriteJSON(streamMessage{Type: streamMessageState, State: payload})
}
