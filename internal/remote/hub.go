package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 100 * time.Millisecond

// hub owns the connected clients and the view they mirror. Everything it
// owns is touched only from run; other goroutines hand it closures.
type hub struct {
	ops     chan func()
	done    chan struct{}
	clients map[*websocket.Conn]bool
	view    StateMessage
}

func newHub(initial StateMessage) *hub {
	return &hub{
		ops:     make(chan func(), 256),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]bool),
		view:    initial,
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.remove(conn)
			}
			return
		case fn := <-h.ops:
			fn()
		}
	}
}

// post hands fn to the hub. It never blocks: updates are dropped if the
// hub has stopped or is hopelessly behind.
func (h *hub) post(fn func()) {
	select {
	case h.ops <- fn:
	case <-h.done:
	default:
		slog.Warn("[REMOTE] hub backlog full, update dropped")
	}
}

// call hands fn to the hub and waits for it to be queued.
func (h *hub) call(ctx context.Context, fn func()) bool {
	select {
	case h.ops <- fn:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.clients[conn] = true
	slog.Info("[REMOTE] client connected", "remote", conn.RemoteAddr(), "clients", len(h.clients))
	h.send(conn, h.view)
}

func (h *hub) remove(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	slog.Info("[REMOTE] client disconnected", "remote", conn.RemoteAddr(), "clients", len(h.clients))
}

func (h *hub) send(conn *websocket.Conn, v any) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		slog.Debug("[REMOTE] write failed, dropping client", "remote", conn.RemoteAddr(), "error", err)
		h.remove(conn)
	}
}

func (h *hub) broadcast(v any) {
	for conn := range h.clients {
		h.send(conn, v)
	}
}
