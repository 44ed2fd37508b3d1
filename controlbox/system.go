// Package controlbox wires the configuration loader, conflict planner,
// phase scheduler, event mediator and state strategies into the single
// root value that owns the intersection (spec.md §9 "Singleton
// controller": process-global but owned by one value created at program
// start and explicitly shut down on exit, not lazily constructed global
// state).
package controlbox

import (
	"context"
	"log"
	"time"

	"github.com/andrem20/allways-safe/controlbox/config"
	"github.com/andrem20/allways-safe/controlbox/dashboard"
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/scheduler"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
	"github.com/andrem20/allways-safe/controlbox/strategy"
)

// setupWarningDuration is the all-red hold SET_UP submits before switching
// to NORMAL (§4.E SET_UP: "submits an all-red warning transition for 5s").
const setupWarningDuration = 5 * time.Second

// System is the TrafficControlSystem: it exclusively owns every Semaphore,
// Crosswalk and Phase value (spec.md §3 "Ownership"), the mediator queue,
// and the scheduler worker. Everything else (cloud client, emergency bus
// subscriber, dashboard) is wired to it but created by the caller, since
// their lifecycles are driven by process configuration the core does not
// need to know about.
type System struct {
	ctx    context.Context
	cancel context.CancelFunc

	Queue      *mediator.Queue
	Dispatcher *mediator.Dispatcher
	Allocator  *semaphore.LineAllocator
	Writer     semaphore.LineWriter
	Cloud      strategy.CloudClient

	machine   *strategy.Machine
	scheduler *scheduler.Scheduler
}

// New builds a System with its SET_UP strategy installed, ready for Run.
// writer drives the physical lines (or a semaphore.SimulatedLines in dev);
// queue is the mediator's event queue, already handed to cloud (and any
// other producer, e.g. the emergency bus subscriber) so every collaborator
// pushes onto the same FIFO before the System itself exists; cloud is the
// collaborator SET_UP requests configuration from.
func New(writer semaphore.LineWriter, queue *mediator.Queue, cloud strategy.CloudClient) *System {
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := mediator.NewDispatcher(queue)

	s := &System{
		ctx:        ctx,
		cancel:     cancel,
		Queue:      queue,
		Dispatcher: dispatcher,
		Allocator:  semaphore.NewLineAllocator(),
		Writer:     writer,
		Cloud:      cloud,
	}

	setUp := &strategy.SetUp{
		Cloud:     cloud,
		Writer:    writer,
		Allocator: s.Allocator,
		Callbacks: config.Callbacks{
			OnButtonPress: func(location int) {
				queue.Push(mediator.Event{Kind: mediator.KindPedestrianButton, Location: location})
			},
			OnRFIDScan: func(location int, uuid uint32) {
				queue.Push(mediator.Event{Kind: mediator.KindPedestrianRFID, Location: location, UUID: uuid})
			},
		},
		OnConfigured: s.onConfigured,
		OnFault: func(err error) {
			log.Printf("[system] SET_UP cloud fault: %v", err)
			s.enterStandaloneFailure()
		},
	}
	dispatcher.SetStrategy(setUp)
	return s
}

// onConfigured runs the remainder of SET_UP once the Configuration Loader
// has produced a Result: build the Conflict Planner's Phase table, start
// the Scheduler worker, submit the all-red boot warning, and switch to
// NORMAL (§4.E SET_UP "on entry" completion).
func (s *System) onConfigured(result *config.Result) {
	phases := planner.Build(result.Traffics, result.Crosswalks, result.MaxLocation)
	log.Printf("[system] planner produced %d phase(s) over %d traffic signal(s) and %d crosswalk(s)",
		len(phases), len(result.Traffics), len(result.Crosswalks))

	sched := scheduler.New(phases,
		func() { s.Queue.Push(mediator.Event{Kind: mediator.KindInternal, Internal: mediator.YellowTimeout}) },
		func(completedIdx int) {
			s.Queue.Push(mediator.Event{Kind: mediator.KindInternal, Internal: mediator.LightsTimeout})
		},
		func(err error) { s.Queue.Push(mediator.Event{Kind: mediator.KindFault, FaultErr: err}) },
	)
	s.scheduler = sched
	go sched.Run(s.ctx)

	m := strategy.NewMachine(s.ctx, s.Dispatcher, sched, s.Cloud, result)
	m.Strategies.Normal = strategy.NewNormal(m)
	m.Strategies.Emergency = strategy.NewEmergency(m)
	m.Strategies.Failure = strategy.NewFailure(m)
	s.machine = m

	if len(phases) == 0 {
		log.Printf("[system] maxLocation produced no phases; cycling will not start")
		return
	}

	go func() {
		sched.AllRed(s.ctx, setupWarningDuration)
		s.Dispatcher.SetStrategy(m.Strategies.Normal)
		sched.Enqueue(scheduler.TransitionJob{NextIndex: 0, GreenTime: phases[0].Time})
		log.Printf("[system] SET_UP complete, entering NORMAL at phase 0")
	}()
}

// enterStandaloneFailure handles a cloud fault raised while SET_UP is still
// waiting for configuration. It only logs the fault: no semaphore has been
// configured yet, so there is no line to drive RED, no FAILURE strategy is
// installed, and the dispatcher keeps the SET_UP strategy.
func (s *System) enterStandaloneFailure() {
	log.Printf("[system] entering FAILURE before configuration completed")
}

// Run blocks until ctx is cancelled or Shutdown is called.
func (s *System) Run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
	s.Dispatcher.Run(s.ctx)
}

// PushEmergencyStart enqueues an EmergencyStart event. The Redis emergency
// bus subscriber does not go through this method; it pushes onto the queue
// itself.
func (s *System) PushEmergencyStart(e mediator.EmergencyStart) {
	s.Queue.Push(mediator.Event{Kind: mediator.KindEmergencyStart, EmergencyStart: e})
}

// PushEmergencyFinish enqueues an EmergencyFinish event. The Redis
// emergency bus subscriber does not go through this method; it pushes onto
// the queue itself.
func (s *System) PushEmergencyFinish() {
	s.Queue.Push(mediator.Event{Kind: mediator.KindEmergencyFinish})
}

// Shutdown cancels the system's context, which drains the dispatcher,
// completes any in-flight yellow interlock, and drives every line RED
// before the process exits (§5 "Cancellation").
func (s *System) Shutdown() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.AllRed(context.Background(), 0)
	}
	s.Queue.Shutdown()
}

// Snapshot implements dashboard.SnapshotSource: a read-only view of the
// current phase, every semaphore's color, and the emergency queue depth.
// No field here ever lets a dashboard client influence the controller.
func (s *System) Snapshot() dashboard.Snapshot {
	if s.machine == nil || s.scheduler == nil || s.scheduler.PhaseCount() == 0 {
		return dashboard.Snapshot{State: "SET_UP"}
	}

	state := "NORMAL"
	emergencyActive := s.machine.Emergency.Len() > 0
	if emergencyActive {
		state = "EMERGENCY"
	}

	idx := s.scheduler.CurrentIndex()

	// Every element belongs to at least one phase, so walking all phases
	// (deduplicated by location) covers every semaphore.
	var dots []dashboard.SemaphoreDot
	seen := make(map[int]bool)
	add := func(location int, kind string, color semaphore.Color) {
		if !seen[location] {
			seen[location] = true
			dots = append(dots, dashboard.SemaphoreDot{Location: location, Kind: kind, Color: color.String()})
		}
	}
	for i := 0; i < s.scheduler.PhaseCount(); i++ {
		phase := s.scheduler.Phase(i)
		for _, t := range phase.Traffics {
			add(t.Location, "traffic", t.Color())
		}
		for _, c := range phase.Crosswalks {
			add(c.Psem1.Location, "pedestrian", c.Psem1.Color())
			add(c.Psem2.Location, "pedestrian", c.Psem2.Color())
		}
	}

	return dashboard.Snapshot{
		State:           state,
		CurrentPhase:    idx,
		PhaseCount:      s.scheduler.PhaseCount(),
		EmergencyActive: emergencyActive,
		EmergencyQueue:  s.machine.Emergency.Len(),
		Semaphores:      dots,
	}
}
