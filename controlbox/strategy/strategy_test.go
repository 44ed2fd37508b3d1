package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andrem20/allways-safe/controlbox/config"
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/scheduler"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

type fakeCloud struct {
	mu          sync.Mutex
	validated   []int
	emergencies []EmergencyRecord
	crossings   []int
}

func (f *fakeCloud) Ping() error { return nil }

func (f *fakeCloud) RequestConfiguration() {}

func (f *fakeCloud) LogPedestrianCrossing(location int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crossings = append(f.crossings, location)
}

func (f *fakeCloud) ValidateRFID(location int, uuid uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, location)
}

func (f *fakeCloud) ReportEmergency(rec EmergencyRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emergencies = append(f.emergencies, rec)
}

// onPressBox forwards a pedestrian button press to a handler installed
// later, once the Machine (and therefore NORMAL) exists. The pedestrian
// semaphores must be built before the Machine, so the callback indirects
// through this box rather than closing over a handler that doesn't exist
// yet.
type onPressBox struct{ fn func(location int) }

func (b *onPressBox) call(location int) {
	if b.fn != nil {
		b.fn(location)
	}
}

// buildIntersection constructs a four-way intersection (Scenario 1's TSEM
// layout) plus one crosswalk between locations 1 and 3, fitted with a real
// button on each pedestrian semaphore. The crosswalk conflicts with the
// TSEMs at 2 and 6 (their destinations pass between 1 and 3) but not with
// those at 0 and 4, so the planner yields exactly two phases: {TSEM@0,
// TSEM@4, crosswalk} and {TSEM@2, TSEM@6}.
func buildIntersection(t *testing.T) (*config.Result, []*planner.Phase, *semaphore.Pedestrian, *onPressBox) {
	t.Helper()
	lines := semaphore.NewSimulatedLines()
	alloc := semaphore.NewLineAllocator()
	claim := func(n int) int {
		if err := alloc.Claim(n); err != nil {
			t.Fatalf("claim %d: %v", n, err)
		}
		return n
	}

	t0 := semaphore.NewTraffic(lines, 0, []int{4}, claim(1), claim(2), claim(3))
	t2 := semaphore.NewTraffic(lines, 2, []int{6}, claim(4), claim(5), claim(6))
	t4 := semaphore.NewTraffic(lines, 4, []int{0}, claim(7), claim(13), claim(14))
	t6 := semaphore.NewTraffic(lines, 6, []int{2}, claim(15), claim(16), claim(17))

	box := &onPressBox{}
	ps1 := semaphore.NewPedestrian(lines, 1, claim(18), claim(19),
		semaphore.WithButton(claim(22), 10, box.call))
	ps2 := semaphore.NewPedestrian(lines, 3, claim(20), claim(21))
	crosswalk := semaphore.NewCrosswalk(ps1, ps2)

	traffics := []*semaphore.Traffic{t0, t2, t4, t6}
	phases := planner.Build(traffics, []*semaphore.Crosswalk{crosswalk}, 6)

	result := &config.Result{
		Traffics:   traffics,
		Crosswalks: []*semaphore.Crosswalk{crosswalk},
	}
	return result, phases, ps1, box
}

func newTestMachine(t *testing.T, phases []*planner.Phase, cfg *config.Result, cloud CloudClient, box *onPressBox) (*Machine, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	queue := mediator.NewQueue()
	dispatcher := mediator.NewDispatcher(queue)
	sched := scheduler.New(phases, nil, nil, nil)
	sched.YellowDuration = time.Millisecond
	go sched.Run(ctx)

	m := NewMachine(ctx, dispatcher, sched, cloud, cfg)
	m.Strategies.Normal = NewNormal(m)
	m.Strategies.Emergency = NewEmergency(m)
	m.Strategies.Failure = NewFailure(m)
	dispatcher.SetStrategy(m.Strategies.Normal)
	go dispatcher.Run(ctx)

	if box != nil {
		box.fn = m.Strategies.Normal.handleButton
	}

	return m, ctx, cancel
}

// phaseIndexWithTraffic returns the index of the phase serving location,
// or -1.
func phaseIndexWithTraffic(phases []*planner.Phase, location int) int {
	for i, p := range phases {
		if p.HasTrafficAt(location) {
			return i
		}
	}
	return -1
}

// Both button tests run during the {TSEM@2, TSEM@6} phase's green dwell,
// since the crosswalk is not a member of that phase and so shows RED while
// it is active — matching the "button only counts while the pedestrian
// signal is red" rule (§4.A, §9).

func TestNormalButtonExtensionDeniedWithoutHeadroom(t *testing.T) {
	cfg, phases, ps1, box := buildIntersection(t)
	cloud := &fakeCloud{}
	m, _, cancel := newTestMachine(t, phases, cfg, cloud, box)
	defer cancel()

	idx := phaseIndexWithTraffic(phases, 2)
	if idx < 0 {
		t.Fatalf("fixture has no phase serving location 2")
	}

	// Enter that phase's green dwell with only 2s remaining (Scenario 2).
	m.Scheduler.Enqueue(scheduler.TransitionJob{NextIndex: idx, GreenTime: 2 * time.Second})
	time.Sleep(20 * time.Millisecond) // let yellow interlock (1ms) elapse

	before := m.Scheduler.GreenRemaining()
	ps1.Button.Trigger(time.Now())
	after := m.Scheduler.GreenRemaining()

	if after > before {
		t.Fatalf("remaining green should not increase")
	}
	if before-after > 50*time.Millisecond {
		t.Fatalf("button press shortened green despite being below the 10s floor: before=%v after=%v", before, after)
	}
}

func TestNormalButtonExtensionAppliedWithHeadroom(t *testing.T) {
	cfg, phases, ps1, box := buildIntersection(t)
	cloud := &fakeCloud{}
	m, _, cancel := newTestMachine(t, phases, cfg, cloud, box)
	defer cancel()

	idx := phaseIndexWithTraffic(phases, 2)
	if idx < 0 {
		t.Fatalf("fixture has no phase serving location 2")
	}

	m.Scheduler.Enqueue(scheduler.TransitionJob{NextIndex: idx, GreenTime: 20 * time.Second})
	time.Sleep(20 * time.Millisecond)

	before := m.Scheduler.GreenRemaining()
	now := time.Now()
	ps1.Button.Trigger(now)
	after := m.Scheduler.GreenRemaining()

	if before-after < 4*time.Second {
		t.Fatalf("expected roughly a 5s reduction, got before=%v after=%v", before, after)
	}

	// Second press in the same phase must be ignored (once per phase per
	// crosswalk). Trigger well outside the debounce window so this is a
	// distinct logical press, not a folded edge.
	again := m.Scheduler.GreenRemaining()
	ps1.Button.Trigger(now.Add(time.Second))
	final := m.Scheduler.GreenRemaining()
	if again-final > 200*time.Millisecond {
		t.Fatalf("second press in the same phase should have no effect")
	}
}

func TestNormalRFIDAsymmetricCap(t *testing.T) {
	cfg, phases, _, box := buildIntersection(t)
	cloud := &fakeCloud{}
	m, _, cancel := newTestMachine(t, phases, cfg, cloud, box)
	defer cancel()

	// Find the phase index containing the crosswalk at location 1.
	var idx = -1
	for i := 0; i < len(phases); i++ {
		if phases[i].HasCrosswalkAt(1) {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Fatalf("fixture has no phase with a crosswalk at location 1")
	}

	m.Strategies.Normal.handleRFIDValid(1)
	if phases[idx].Time != planner.DefaultGreenTime+planner.DefaultGreenTime {
		t.Fatalf("expected time doubled to %v, got %v", 2*planner.DefaultGreenTime, phases[idx].Time)
	}

	// A second valid read before the phase activates must not extend again.
	m.Strategies.Normal.handleRFIDValid(1)
	if phases[idx].Time != 2*planner.DefaultGreenTime {
		t.Fatalf("expected no further extension, got %v", phases[idx].Time)
	}
}

func TestEmergencyPreemptionJumpsToOriginPhase(t *testing.T) {
	cfg, phases, _, _ := buildIntersection(t)
	cloud := &fakeCloud{}
	m, _, cancel := newTestMachine(t, phases, cfg, cloud, nil)
	defer cancel()

	// Location 2 is served only by the phase that is not current at boot
	// (current is index 0, the {0,4,crosswalk} phase).
	target := -1
	for i, p := range phases {
		if p.HasTrafficAt(2) {
			target = i
			break
		}
	}
	if target < 0 || target == m.Scheduler.CurrentIndex() {
		t.Fatalf("fixture must have a non-current phase serving location 2")
	}

	m.Strategies.Normal.Handle(mediator.Event{
		Kind:           mediator.KindEmergencyStart,
		EmergencyStart: mediator.EmergencyStart{Plate: "ABC123", Location: 2, Destination: 0, Priority: 1},
	})

	time.Sleep(50 * time.Millisecond)

	cloud.mu.Lock()
	defer cloud.mu.Unlock()
	if len(cloud.emergencies) != 1 {
		t.Fatalf("expected one emergency reported to cloud, got %d", len(cloud.emergencies))
	}
	if cloud.emergencies[0].Origin != 2 {
		t.Fatalf("expected origin 2, got %d", cloud.emergencies[0].Origin)
	}
	for _, tr := range phases[target].Traffics {
		if tr.Color() != semaphore.Green {
			t.Fatalf("expected the origin phase's TSEM@%d to be GREEN, got %v", tr.Location, tr.Color())
		}
	}
}
