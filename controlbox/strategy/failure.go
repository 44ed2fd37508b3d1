package strategy

import (
	"log"

	"github.com/andrem20/allways-safe/controlbox/mediator"
)

// Failure is the safe-stop strategy: every signal goes RED and no further
// stimuli are acted upon (§4.E, §7 "a FAILURE mode exists but only asserts
// a safe all-stop").
type Failure struct {
	m *Machine
}

// NewFailure builds the FAILURE strategy over the shared machine.
func NewFailure(m *Machine) *Failure { return &Failure{m: m} }

// Enter drives every element RED. It runs in its own goroutine since
// AllRed blocks for up to a yellow interlock and must not stall the
// dispatcher.
func (f *Failure) Enter() {
	log.Printf("[failure] entering FAILURE, driving all signals red")
	go f.m.Scheduler.AllRed(f.m.Ctx, 0)
}

// Handle accepts no further stimuli; every event is silently absorbed.
func (f *Failure) Handle(mediator.Event) {}
