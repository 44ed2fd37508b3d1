// Package planner builds the undirected conflict graph over a set of
// traffic semaphores and crosswalks, and enumerates the maximal independent
// sets that become Phases.
package planner

import "github.com/andrem20/allways-safe/controlbox/semaphore"

// Element is anything that can occupy a vertex in the conflict graph: a
// TrafficSemaphore (one vertex, its own location) or a Crosswalk (two
// vertices, one per paired PedestrianSemaphore).
type Element struct {
	Location  int
	Traffic   *semaphore.Traffic   // nil for a crosswalk vertex
	Crosswalk *semaphore.Crosswalk // nil for a traffic vertex
}

// conflict reports whether a and b may not be GREEN simultaneously.
func conflict(a, b Element, maxLocation int) bool {
	switch {
	case a.Traffic != nil && b.Traffic != nil:
		return trafficConflict(a.Traffic, b.Traffic, maxLocation)
	case a.Traffic != nil && b.Crosswalk != nil:
		return trafficCrosswalkConflict(a.Traffic, b.Crosswalk)
	case a.Crosswalk != nil && b.Traffic != nil:
		return trafficCrosswalkConflict(b.Traffic, a.Crosswalk)
	default: // both crosswalks
		return false
	}
}

// crosses reports whether x lies strictly on the forward cyclic arc from p
// to q, over the ring [0, maxLocation]. Half-open: includes p's successor,
// excludes q itself.
func crosses(p, q, x, maxLocation int) bool {
	ring := maxLocation + 1
	norm := func(v int) int {
		v %= ring
		if v < 0 {
			v += ring
		}
		return v
	}
	pp, qq, xx := norm(p), norm(q), norm(x)
	if pp == qq {
		return false
	}
	if pp < qq {
		return xx > pp && xx < qq
	}
	return xx > pp || xx < qq
}

// trafficConflict implements the cyclic trajectory-crossing predicate
// between two TrafficSemaphores, tested across every destination pair.
func trafficConflict(a, b *semaphore.Traffic, maxLocation int) bool {
	for _, da := range a.DestinationList() {
		for _, db := range b.DestinationList() {
			if da == db {
				return true
			}
			crossA := crosses(a.Location, da, b.Location, maxLocation) != crosses(a.Location, da, db, maxLocation)
			crossB := crosses(b.Location, db, a.Location, maxLocation) != crosses(b.Location, db, da, maxLocation)
			if crossA || crossB {
				return true
			}
		}
	}
	return false
}

// trafficCrosswalkConflict: a TSEM conflicts with a crosswalk if the TSEM's
// own location, or any of its destinations, falls strictly between the
// crosswalk's two locations.
func trafficCrosswalkConflict(t *semaphore.Traffic, c *semaphore.Crosswalk) bool {
	min, max := c.Min(), c.Max()
	between := func(x int) bool { return x > min && x < max }
	if between(t.Location) {
		return true
	}
	for _, d := range t.DestinationList() {
		if between(d) {
			return true
		}
	}
	return false
}
