// Package remote bridges the control link to a handheld UI over WebSocket.
// The UI sends throttle intents and receives the connection state and the
// throttle the controller reports.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/throttle-remote/internal/ble/protocol"
	"github.com/chaz8081/throttle-remote/internal/control"
)

// Controller is the part of the control core the bridge drives.
// *control.Core implements it.
type Controller interface {
	SubmitDesiredMax(v int)
	SubmitDesiredCurrent(v int)
	NotifyEditingEnded()
	Snapshot() control.Snapshot
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server is the WebSocket bridge. It implements control.Observer.
type Server struct {
	ctrl Controller
	hub  *hub
}

var _ control.Observer = (*Server)(nil)

// NewServer creates a bridge over ctrl. Call Run to start the hub.
func NewServer(ctrl Controller) *Server {
	return &Server{
		ctrl: ctrl,
		hub:  newHub(stateFromSnapshot(ctrl.Snapshot())),
	}
}

// Run runs the hub until ctx is done, then disconnects every client.
func (s *Server) Run(ctx context.Context) {
	s.hub.run(ctx)
}

// Handler returns the HTTP handler serving /ws and /state.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/state", s.handleState)
	return mux
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("[REMOTE] listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("remote: serve %s: %w", addr, err)
	}
	return nil
}

// ConnectionChanged implements control.Observer.
func (s *Server) ConnectionChanged(state control.ConnectionState) {
	s.hub.post(func() {
		s.hub.view.Connection = state.String()
		s.hub.broadcast(s.hub.view)
	})
}

// ThrottleObserved implements control.Observer.
func (s *Server) ThrottleObserved(observed control.Observed) {
	s.hub.post(func() {
		s.hub.view.InboundMax = observed.InboundMax
		s.hub.view.InboundCurrent = observed.InboundCurrent
		s.hub.broadcast(s.hub.view)
	})
}

// CurrentReleased implements control.Observer.
func (s *Server) CurrentReleased() {
	s.hub.post(func() {
		s.hub.view.InboundCurrent = 0
		s.hub.broadcast(EventMessage{Type: TypeReleased})
		s.hub.broadcast(s.hub.view)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorMessage{Type: TypeError, Error: "method not allowed"})
		return
	}

	snap := s.ctrl.Snapshot()
	json.NewEncoder(w).Encode(StatusResponse{
		StateMessage:   stateFromSnapshot(snap),
		DesiredMax:     snap.DesiredMax,
		DesiredCurrent: snap.DesiredCurrent,
		Editing:        snap.Editing,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[REMOTE] failed to upgrade connection", "error", err)
		return
	}

	if !s.hub.call(r.Context(), func() { s.hub.add(conn) }) {
		conn.Close()
		return
	}
	// Must not be dropped like a broadcast, or a dead conn stays registered.
	defer s.hub.call(context.Background(), func() { s.hub.remove(conn) })

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("[REMOTE] read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}
		if err := s.dispatch(msg); err != nil {
			reply := ErrorMessage{Type: TypeError, Error: err.Error()}
			s.hub.post(func() {
				if s.hub.clients[conn] {
					s.hub.send(conn, reply)
				}
			})
		}
	}
}

// dispatch forwards one inbound message to the controller.
func (s *Server) dispatch(msg Inbound) error {
	switch msg.Type {
	case TypeSetMax:
		v, err := throttleValue(msg)
		if err != nil {
			return err
		}
		s.ctrl.SubmitDesiredMax(v)
	case TypeSetCurrent:
		v, err := throttleValue(msg)
		if err != nil {
			return err
		}
		s.ctrl.SubmitDesiredCurrent(v)
	case TypeRelease:
		s.ctrl.NotifyEditingEnded()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func throttleValue(msg Inbound) (int, error) {
	if msg.Value == nil {
		return 0, fmt.Errorf("%s: missing value", msg.Type)
	}
	v := *msg.Value
	if v < protocol.MinThrottle || v > protocol.MaxThrottle {
		return 0, fmt.Errorf("%s: value %d out of range %d-%d", msg.Type, v, protocol.MinThrottle, protocol.MaxThrottle)
	}
	return v, nil
}
