// Package strategy implements the per-state event handling policy
// (SET_UP, NORMAL, EMERGENCY, FAILURE) the mediator dispatches events to.
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/andrem20/allways-safe/controlbox/config"
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/scheduler"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

// MinGreenSeconds and ReduceSeconds govern the pedestrian-button extension
// in NORMAL (§4.E: MIN_SECONDS=10, REDUCE_SECONDS=5).
const (
	MinGreenSeconds = 10 * time.Second
	ReduceSeconds   = 5 * time.Second
)

// CloudClient is the narrow outbound surface the strategies need from the
// cloud collaborator. Strategies never block on a reply; every call is
// fire-and-forget, with the reply arriving later as a CloudResponse event.
type CloudClient interface {
	// Ping is a synchronous boot-time connectivity probe, run once before
	// SET_UP requests configuration (original "cloudConnect"). A failure
	// here is a CloudTransientError like any other and follows the same
	// retry/backoff rule before escalating.
	Ping() error
	RequestConfiguration()
	ValidateRFID(location int, uuid uint32)
	ReportEmergency(record EmergencyRecord)
	// LogPedestrianCrossing records that a granted button extension let a
	// crossing CC at location proceed (§6.1 row 4, POST
	// /data/p_semaphore_pedestrian).
	LogPedestrianCrossing(location int)
}

// EmergencyRecord is the audit record sent to the cloud when an emergency
// is honored.
type EmergencyRecord struct {
	Plate       string
	Origin      int
	Destination int
	Priority    int
	Timestamp   time.Time
}

// EmergencyQueue is the FIFO of announced emergencies (§3 EmergencyContext).
// Emergency.Enter honors the head and pops it once the pre-emption is
// submitted, so the queue holds the announcements not yet served.
type EmergencyQueue struct {
	mu    sync.Mutex
	items []mediator.EmergencyStart
}

func (q *EmergencyQueue) Push(e mediator.EmergencyStart) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, e)
}

func (q *EmergencyQueue) Pop() (mediator.EmergencyStart, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return mediator.EmergencyStart{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *EmergencyQueue) Peek() (mediator.EmergencyStart, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return mediator.EmergencyStart{}, false
	}
	return q.items[0], true
}

func (q *EmergencyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Machine is the shared, mutable context every strategy operates on: the
// scheduler's phase table, the cloud client, the emergency FIFO, and the
// location-indexed lookups the strategies need to resolve events. It is
// built once SET_UP's Configuration Loader and Conflict Planner steps
// complete and is immutable thereafter except for the fields the state
// machine itself owns (current strategy, emergency FIFO, per-phase time).
type Machine struct {
	Ctx        context.Context
	Dispatcher *mediator.Dispatcher
	Scheduler  *scheduler.Scheduler
	Cloud      CloudClient
	Emergency  *EmergencyQueue
	Strategies Strategies

	crosswalkByLocation map[int]*semaphore.Crosswalk
}

// Strategies holds the four installed state strategies so any one of them
// can hand the dispatcher off to another (§4.E state transitions).
type Strategies struct {
	SetUp     *SetUp
	Normal    *Normal
	Emergency *Emergency
	Failure   *Failure
}

// NewMachine indexes a Configuration Loader result's crosswalks by location
// so strategies can resolve a PedestrianButtonEvent/PedestrianRFIDEvent's
// bare location into the crosswalk it belongs to.
func NewMachine(ctx context.Context, dispatcher *mediator.Dispatcher, sched *scheduler.Scheduler, cloud CloudClient, cfg *config.Result) *Machine {
	m := &Machine{
		Ctx:                 ctx,
		Dispatcher:          dispatcher,
		Scheduler:           sched,
		Cloud:               cloud,
		Emergency:           &EmergencyQueue{},
		crosswalkByLocation: make(map[int]*semaphore.Crosswalk),
	}
	for _, c := range cfg.Crosswalks {
		m.crosswalkByLocation[c.Psem1.Location] = c
		m.crosswalkByLocation[c.Psem2.Location] = c
	}
	return m
}

// phaseContainingTraffic returns the index of the first phase (in cyclic
// order starting at `from`) whose active TSEMs include location, or -1.
func (m *Machine) phaseContainingTraffic(from, location int) int {
	n := m.Scheduler.PhaseCount()
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if m.Scheduler.Phase(idx).HasTrafficAt(location) {
			return idx
		}
	}
	return -1
}

// nextPhaseContainingCrosswalk returns the index of the next upcoming phase
// (strictly after the current one, cyclic) whose crosswalks include
// location, or -1 if none do.
func (m *Machine) nextPhaseContainingCrosswalk(location int) int {
	n := m.Scheduler.PhaseCount()
	current := m.Scheduler.CurrentIndex()
	for i := 1; i <= n; i++ {
		idx := (current + i) % n
		if m.Scheduler.Phase(idx).HasCrosswalkAt(location) {
			return idx
		}
	}
	return -1
}
