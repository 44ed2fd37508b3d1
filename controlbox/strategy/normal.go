package strategy

import (
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/observability"
	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/scheduler"
)

// Normal is the steady-state cycling strategy: it advances phases on their
// own timer, cuts ReduceSeconds off the remaining green on a fresh
// pedestrian button press, and lengthens an upcoming phase's green on a
// recognized RFID tag.
type Normal struct {
	m *Machine
}

// NewNormal builds the NORMAL strategy over the shared machine.
func NewNormal(m *Machine) *Normal { return &Normal{m: m} }

func (n *Normal) Handle(e mediator.Event) {
	switch e.Kind {
	case mediator.KindInternal:
		n.handleInternal(e.Internal)
	case mediator.KindPedestrianButton:
		n.handleButton(e.Location)
	case mediator.KindPedestrianRFID:
		n.m.Cloud.ValidateRFID(e.Location, e.UUID)
	case mediator.KindCloudResponse:
		if e.CloudResponse == mediator.RFIDValidation && e.CloudRFIDValid {
			n.handleRFIDValid(e.CloudRFIDLocation)
		}
	case mediator.KindEmergencyStart:
		n.m.Emergency.Push(e.EmergencyStart)
		n.m.Dispatcher.SetStrategy(n.m.Strategies.Emergency)
		n.m.Strategies.Emergency.Enter()
	case mediator.KindFault:
		n.m.Dispatcher.SetStrategy(n.m.Strategies.Failure)
		n.m.Strategies.Failure.Enter()
	}
}

func (n *Normal) handleInternal(kind mediator.InternalKind) {
	switch kind {
	case mediator.LightsTimeout:
		next := (n.m.Scheduler.CurrentIndex() + 1) % n.m.Scheduler.PhaseCount()
		phase := n.m.Scheduler.Phase(next)
		n.m.Scheduler.Enqueue(scheduler.TransitionJob{NextIndex: next, GreenTime: phase.Time})
	case mediator.YellowTimeout:
		// scheduler handles the interlock itself; NORMAL takes no action.
	}
}

// handleButton implements the pedestrian-button extension (§4.C, §4.E):
// permitted at most once per phase per crosswalk, and only while more than
// MinGreenSeconds of green remain.
func (n *Normal) handleButton(location int) {
	crosswalk, ok := n.m.crosswalkByLocation[location]
	if !ok {
		return
	}
	if crosswalk.Psem1.ButtonEventCounter() > 1 || crosswalk.Psem2.ButtonEventCounter() > 1 {
		return
	}
	if n.m.Scheduler.GreenRemaining() > MinGreenSeconds {
		n.m.Scheduler.ShortenGreen(ReduceSeconds)
		n.m.Cloud.LogPedestrianCrossing(location)
		observability.PedestrianButtonExtensions.Inc()
	}
}

// handleRFIDValid implements the asymmetric RFID-shortening cap: a phase
// already extended this cycle is not extended again (§4.C, §9 open
// question resolution).
func (n *Normal) handleRFIDValid(location int) {
	idx := n.m.nextPhaseContainingCrosswalk(location)
	if idx < 0 {
		return
	}
	phase := n.m.Scheduler.Phase(idx)
	if phase.Time <= planner.DefaultGreenTime {
		phase.Time += planner.DefaultGreenTime
		if phase.Time > planner.MaxGreenTime {
			phase.Time = planner.MaxGreenTime
		}
		observability.RFIDShortenings.Inc()
	}
}
