package dashboard

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP front end for the dashboard hub: a single upgrade
// endpoint, no auth, no control input (read-only operator console).
type Server struct {
	Addr string
	Hub  *Hub
}

// NewServer builds a Server bound to addr, broadcasting through hub.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// ListenAndServe runs the dashboard's HTTP server; blocks until it exits.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	return srv.ListenAndServe()
}

// handleStream upgrades to a websocket and registers the connection with
// the hub, directly adapted from the teacher's handleDashboardStream:
// same ping/pong dead-client detection, same read pump, minus the
// tenant-scoped auth middleware (there is only one tenant here: this
// intersection).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[dashboard] upgrade failed: %v", err)
		return
	}
	s.Hub.Register(conn)
	defer s.Hub.Unregister(conn)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[dashboard] read error: %v", err)
			}
			break
		}
	}
}
