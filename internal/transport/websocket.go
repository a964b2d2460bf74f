// Package transport publishes engine output to external renderers over
// WebSocket. Renderers are consumers only; nothing is read back from them
// besides connection liveness.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
)

const writeTimeout = 2 * time.Second

// Hub broadcasts JSON-encoded tick output to all connected clients. Slow or
// broken clients are dropped rather than allowed to stall the tick loop.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates a Hub serving websocket upgrades on addr at /state.
func NewHub(addr string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/state", h.handleUpgrade)
	h.server = &http.Server{Addr: addr, Handler: mux}
	return h
}

// Run serves until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("renderer websocket listening", slog.String("addr", h.server.Addr))
		errCh <- h.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "renderer websocket server")
		}
		return nil
	}
}

// Broadcast sends v to every connected client. Never blocks the caller
// beyond the per-client write timeout; failing clients are removed.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to encode engine output", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("dropping renderer client", slog.Any("error", err))
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

// ClientCount reports the number of connected renderers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain reads so pings/closes are processed; any error unregisters.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				_ = conn.Close()
				return
			}
		}
	}()
}
