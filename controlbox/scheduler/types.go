// Package scheduler drives red/yellow/green transitions between Phases
// through the mandated yellow interlock, and supports early-fire
// pre-emption for emergency vehicles.
package scheduler

import (
	"time"

	"github.com/andrem20/allways-safe/controlbox/planner"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

// YellowDuration is the fixed, non-negotiable yellow interlock (§4.C, §7:
// "Yellow duration is never negotiable: it is a safety invariant").
const YellowDuration = 2 * time.Second

// TransitionJob is the single submission primitive the strategy layer uses
// to ask the scheduler to move to a new phase.
type TransitionJob struct {
	NextIndex int
	GreenTime time.Duration
}

// diff computes OFF_TSEM and OFF_CROSS: the traffic semaphores and
// crosswalks active in current but not in next.
func diff(current, next *planner.Phase) (offTsem []*semaphore.Traffic, offCross []*semaphore.Crosswalk) {
	nextTsem := make(map[int]bool, len(next.Traffics))
	for _, t := range next.Traffics {
		nextTsem[t.Location] = true
	}
	for _, t := range current.Traffics {
		if !nextTsem[t.Location] {
			offTsem = append(offTsem, t)
		}
	}

	nextCross := make(map[int]bool, len(next.Crosswalks))
	for _, c := range next.Crosswalks {
		nextCross[c.Min()] = true
	}
	for _, c := range current.Crosswalks {
		if !nextCross[c.Min()] {
			offCross = append(offCross, c)
		}
	}
	return offTsem, offCross
}
