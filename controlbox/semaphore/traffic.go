package semaphore

import "sort"

// Traffic is a TrafficSemaphore: a signal that supports all three colors and
// carries the set of locations a vehicle leaving it may reach.
type Traffic struct {
	Base
	Destinations map[int]struct{}
}

// NewTraffic builds a TrafficSemaphore. destinations must be non-empty;
// callers (config.Load) are responsible for that validation.
func NewTraffic(writer LineWriter, location int, destinations []int, gpioRed, gpioGreen, gpioYellow int) *Traffic {
	dests := make(map[int]struct{}, len(destinations))
	for _, d := range destinations {
		dests[d] = struct{}{}
	}
	return &Traffic{
		Base: newBase(location, writer, map[Color]int{
			Red:    gpioRed,
			Green:  gpioGreen,
			Yellow: gpioYellow,
		}),
		Destinations: dests,
	}
}

// SwitchTo drives the semaphore to colour, honoring the hardware
// retry-once-then-surface-error policy.
func (t *Traffic) SwitchTo(colour Color) error {
	return t.switchTo(colour)
}

// DestinationList returns the destinations as a stable-ordered slice, used by
// the planner's conflict predicate and by tests.
func (t *Traffic) DestinationList() []int {
	out := make([]int, 0, len(t.Destinations))
	for d := range t.Destinations {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
