package strategy

import (
	"time"

	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/observability"
	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/scheduler"
)

// Emergency pre-empts normal cycling to serve the head of the emergency
// FIFO: it early-fires any in-flight green dwell and jumps to the first
// phase that serves the emergency's origin location.
type Emergency struct {
	m *Machine
}

// NewEmergency builds the EMERGENCY strategy over the shared machine.
func NewEmergency(m *Machine) *Emergency { return &Emergency{m: m} }

// Enter runs the pre-emption described in §4.E EMERGENCY "on entry".
func (em *Emergency) Enter() {
	head, ok := em.m.Emergency.Peek()
	if !ok {
		return
	}
	em.m.Scheduler.SetEmergencyActive(true)

	current := em.m.Scheduler.CurrentIndex()
	if !em.m.Scheduler.Phase(current).HasTrafficAt(head.Location) {
		target := em.m.phaseContainingTraffic(current, head.Location)
		if target >= 0 {
			em.m.Scheduler.EarlyFire()
			em.m.Scheduler.Enqueue(scheduler.TransitionJob{NextIndex: target, GreenTime: planner.DefaultGreenTime})
			observability.EmergencyPreemptions.Inc()
		}
	}

	em.m.Cloud.ReportEmergency(EmergencyRecord{
		Plate:       head.Plate,
		Origin:      head.Location,
		Destination: head.Destination,
		Priority:    head.Priority,
		Timestamp:   time.Now(),
	})
	em.m.Emergency.Pop()
}

// Handle reacts to YELLOW_TIMEOUT (collapsing the pre-empt transition's
// green dwell), EmergencyStart (queuing the new announcement),
// EmergencyFinish (returning to NORMAL) and a fault (entering FAILURE).
// Every other event is consumed from the queue but produces no effect, so
// no green extension or RFID shortening happens while an emergency is
// active.
func (em *Emergency) Handle(e mediator.Event) {
	switch e.Kind {
	case mediator.KindInternal:
		if e.Internal == mediator.YellowTimeout {
			em.m.Scheduler.EarlyFire()
		}
	case mediator.KindEmergencyStart:
		em.m.Emergency.Push(e.EmergencyStart)
	case mediator.KindEmergencyFinish:
		em.m.Scheduler.SetEmergencyActive(false)
		next := (em.m.Scheduler.CurrentIndex() + 1) % em.m.Scheduler.PhaseCount()
		em.m.Scheduler.Enqueue(scheduler.TransitionJob{NextIndex: next, GreenTime: em.m.Scheduler.Phase(next).Time})
		em.m.Dispatcher.SetStrategy(em.m.Strategies.Normal)
	case mediator.KindFault:
		em.m.Dispatcher.SetStrategy(em.m.Strategies.Failure)
		em.m.Strategies.Failure.Enter()
	}
}
