package scheduler

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/andrem20/allways-safe/controlbox/observability"
	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

// Scheduler owns current_phase_idx and runs the single worker goroutine
// that executes one TransitionJob at a time (§4.C).
type Scheduler struct {
	mu         sync.Mutex
	phases     []*planner.Phase
	currentIdx int
	emergency  bool

	jobs      chan TransitionJob
	earlyFire chan struct{} // fresh per in-flight job; guarded by mu

	greenTimer    *time.Timer
	greenDeadline time.Time

	// YellowDuration overrides the fixed 2s interlock; tests shrink it.
	// Production wiring leaves it at the package default.
	YellowDuration time.Duration

	onYellowTimeout func()
	onLightsTimeout func(completedIdx int)
	onHardwareError func(error)

	allTraffics   []*semaphore.Traffic
	allCrosswalks []*semaphore.Crosswalk
}

// New builds a Scheduler over an immutable, already-planned phase table.
// onYellowTimeout and onLightsTimeout are invoked synchronously from the
// worker goroutine to publish InternalEvents back to the mediator;
// onHardwareError escalates a HardwareWriteError after the retry-once
// policy in the semaphore package has already been exhausted.
func New(phases []*planner.Phase, onYellowTimeout func(), onLightsTimeout func(completedIdx int), onHardwareError func(error)) *Scheduler {
	s := &Scheduler{
		phases:          phases,
		YellowDuration:  YellowDuration,
		jobs:            make(chan TransitionJob, 1),
		onYellowTimeout: onYellowTimeout,
		onLightsTimeout: onLightsTimeout,
		onHardwareError: onHardwareError,
	}

	seenTraffic := make(map[int]bool)
	seenCross := make(map[int]bool)
	for _, p := range phases {
		for _, t := range p.Traffics {
			if !seenTraffic[t.Location] {
				seenTraffic[t.Location] = true
				s.allTraffics = append(s.allTraffics, t)
			}
		}
		for _, c := range p.Crosswalks {
			if !seenCross[c.Min()] {
				seenCross[c.Min()] = true
				s.allCrosswalks = append(s.allCrosswalks, c)
			}
		}
	}
	return s
}

// CurrentIndex returns the currently active phase index.
func (s *Scheduler) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIdx
}

// Phase returns the phase at idx.
func (s *Scheduler) Phase(idx int) *planner.Phase {
	return s.phases[idx]
}

// PhaseCount reports how many phases the scheduler cycles through.
func (s *Scheduler) PhaseCount() int {
	return len(s.phases)
}

// SetEmergencyActive marks whether an emergency is currently being honored,
// which drives the pedestrian buzzer policy during transitions (§4.C).
func (s *Scheduler) SetEmergencyActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergency = active
}

// Enqueue submits a transition job. The worker processes exactly one job at
// a time. EMERGENCY's pre-emption submits its job while another is still
// in flight; the single-slot buffered channel holds one such waiting job,
// and a further Enqueue blocks until the worker takes it.
func (s *Scheduler) Enqueue(job TransitionJob) {
	s.jobs <- job
}

// EarlyFire arms the in-flight job's green dwell with a near-zero duration,
// causing it to end promptly. It never truncates an in-progress yellow
// interlock: a request made during yellow is latched and collapses the
// green dwell the moment it begins. A no-op if no job is in flight.
func (s *Scheduler) EarlyFire() {
	s.mu.Lock()
	ch := s.earlyFire
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// GreenRemaining reports time left in the in-flight green dwell, or 0 if no
// job is currently in its green dwell.
func (s *Scheduler) GreenRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greenTimer == nil {
		return 0
	}
	return time.Until(s.greenDeadline)
}

// ShortenGreen reduces the in-flight green dwell by d, used by the
// pedestrian-button extension (a negative d lengthens it, used by nothing
// today but kept symmetric with GreenRemaining). Reports false if no job is
// currently in its green dwell.
func (s *Scheduler) ShortenGreen(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greenTimer == nil {
		return false
	}
	remaining := time.Until(s.greenDeadline) - d
	if remaining < 0 {
		remaining = 0
	}
	s.greenTimer.Stop()
	s.greenDeadline = time.Now().Add(remaining)
	s.greenTimer.Reset(remaining)
	return true
}

// Run processes transition jobs until ctx is canceled. It is meant to run
// in its own goroutine, started once at boot.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job TransitionJob) {
	s.mu.Lock()
	current := s.phases[s.currentIdx]
	next := s.phases[job.NextIndex]
	emergency := s.emergency
	earlyFire := make(chan struct{}, 1)
	s.earlyFire = earlyFire
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.earlyFire = nil
		s.mu.Unlock()
	}()

	offTsem, offCross := diff(current, next)

	for _, c := range offCross {
		if err := c.SwitchTo(semaphore.Red, emergency); err != nil {
			s.reportHardware(err)
		}
	}
	for _, tr := range offTsem {
		if err := tr.SwitchTo(semaphore.Yellow); err != nil {
			s.reportHardware(err)
		}
	}

	select {
	case <-time.After(s.YellowDuration):
	case <-ctx.Done():
		return
	}

	for _, tr := range offTsem {
		if err := tr.SwitchTo(semaphore.Red); err != nil {
			s.reportHardware(err)
		}
	}

	if s.onYellowTimeout != nil {
		s.onYellowTimeout()
	}

	for _, c := range next.Crosswalks {
		if err := c.SwitchTo(semaphore.Green, emergency); err != nil {
			s.reportHardware(err)
		}
	}
	for _, tr := range next.Traffics {
		if err := tr.SwitchTo(semaphore.Green); err != nil {
			s.reportHardware(err)
		}
	}

	greenTimer := time.NewTimer(job.GreenTime)
	s.mu.Lock()
	s.greenTimer = greenTimer
	s.greenDeadline = time.Now().Add(job.GreenTime)
	s.mu.Unlock()

	select {
	case <-greenTimer.C:
	case <-earlyFire:
		greenTimer.Stop()
	case <-ctx.Done():
		greenTimer.Stop()
		return
	}

	s.mu.Lock()
	s.greenTimer = nil
	s.currentIdx = job.NextIndex
	s.mu.Unlock()

	observability.PhaseTransitions.WithLabelValues(strconv.Itoa(job.NextIndex)).Inc()
	observability.CurrentPhase.Set(float64(job.NextIndex))

	next.ResetTime()

	// Every PSEM's button-press counter resets on phase change (§3), read
	// before reset by the NORMAL strategy's already-extended check — so the
	// reset must land here, on transition completion, not at transition
	// start (§9 open question resolution).
	for _, c := range s.allCrosswalks {
		c.Psem1.ResetButtonEventCounter()
		c.Psem2.ResetButtonEventCounter()
	}

	if s.onLightsTimeout != nil {
		s.onLightsTimeout(job.NextIndex)
	}
}

// AllRed drives every signal in the intersection to RED (yellow-interlocked
// for any TSEM currently GREEN) and holds for hold before returning. Used
// for the SET_UP boot warning and FAILURE's safe-stop. Blocking; callers
// that must not stall the dispatcher run it in its own goroutine.
func (s *Scheduler) AllRed(ctx context.Context, hold time.Duration) {
	anyYellow := false
	for _, t := range s.allTraffics {
		if t.Color() == semaphore.Green {
			if err := t.SwitchTo(semaphore.Yellow); err != nil {
				s.reportHardware(err)
			}
			anyYellow = true
		}
	}
	if anyYellow {
		select {
		case <-time.After(s.YellowDuration):
		case <-ctx.Done():
			return
		}
	}
	for _, t := range s.allTraffics {
		if err := t.SwitchTo(semaphore.Red); err != nil {
			s.reportHardware(err)
		}
	}
	for _, c := range s.allCrosswalks {
		if err := c.SwitchTo(semaphore.Red, false); err != nil {
			s.reportHardware(err)
		}
	}

	select {
	case <-time.After(hold):
	case <-ctx.Done():
	}
}

func (s *Scheduler) reportHardware(err error) {
	log.Printf("[scheduler] hardware write error: %v", err)
	if s.onHardwareError != nil {
		observability.HardwareWriteErrors.WithLabelValues("escalated").Inc()
		s.onHardwareError(err)
	}
}
