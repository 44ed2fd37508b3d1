// Package dashboard pushes a read-only live view of the intersection (the
// current phase, every semaphore's color, and the emergency queue depth) to
// connected operator consoles over a websocket. It is directly adapted from
// the teacher's control_plane/ws_hub.go single-broadcaster hub: there is no
// per-tenant fan-out here (one control box drives exactly one intersection),
// so the hub broadcasts one snapshot to every connected client instead of
// partitioning by tenant. There is no control path back to the controller
// through this package — the planner and scheduler remain the sole
// actuators (SPEC_FULL.md §B).
package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxConnections bounds operator console fan-out, matching the teacher's
// maxWSConnections connection cap.
const maxConnections = 200

// Snapshot is the live view pushed to every connected client once a second.
type Snapshot struct {
	State           string         `json:"state"`
	CurrentPhase    int            `json:"current_phase"`
	PhaseCount      int            `json:"phase_count"`
	EmergencyActive bool           `json:"emergency_active"`
	EmergencyQueue  int            `json:"emergency_queue_depth"`
	Semaphores      []SemaphoreDot `json:"semaphores"`
}

// SemaphoreDot is one element's color in a Snapshot.
type SemaphoreDot struct {
	Location int    `json:"location"`
	Kind     string `json:"kind"` // "traffic" or "pedestrian"
	Color    string `json:"color"`
}

// SnapshotSource supplies the current Snapshot; implemented by the system's
// top-level wiring, which has a read-only view of the scheduler's phase
// table and the strategy machine's emergency queue.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Hub manages the connected operator consoles and broadcasts one Snapshot a
// second, adapted from the teacher's MetricsHub (single broadcaster loop,
// channel-mediated register/unregister to avoid a lock held across a
// network write).
type Hub struct {
	source SnapshotSource

	mu       sync.RWMutex
	clients  map[*websocket.Conn]struct{}
	register chan *websocket.Conn
	unreg    chan *websocket.Conn
}

// NewHub builds a Hub that broadcasts snapshots drawn from source.
func NewHub(source SnapshotSource) *Hub {
	return &Hub{
		source:   source,
		clients:  make(map[*websocket.Conn]struct{}),
		register: make(chan *websocket.Conn),
		unreg:    make(chan *websocket.Conn),
	}
}

// Run broadcasts once a second until ctx is cancelled, then closes every
// connected client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("[dashboard] connection rejected: max connections (%d) reached", maxConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("[dashboard] client connected, total=%d", h.ClientCount())
		case conn := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("[dashboard] client disconnected, total=%d", h.ClientCount())
		case <-ticker.C:
			h.broadcast()
		}
	}
}

func (h *Hub) broadcast() {
	snap := h.source.Snapshot()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			log.Printf("[dashboard] write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	log.Printf("[dashboard] shutting down with %d clients", len(h.clients))
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register adds a new client connection to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) { h.unreg <- conn }

// ClientCount reports the number of connected operator consoles.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
