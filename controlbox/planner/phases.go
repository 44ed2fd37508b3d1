package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

// DefaultGreenTime is the nominal green duration assigned to every freshly
// built Phase, and the value a Phase's Time is reset to on exit.
const DefaultGreenTime = 5 * time.Second

// MaxGreenTime is the hard cap on how far a Phase's Time may be extended by
// the RFID-shortening nudge (2x default, §4.C).
const MaxGreenTime = 2 * DefaultGreenTime

// Phase (Configuration) is a maximal set of non-conflicting intersection
// elements that may be GREEN simultaneously, plus the green duration the
// scheduler will hold it for on its next activation.
type Phase struct {
	Traffics   []*semaphore.Traffic
	Crosswalks []*semaphore.Crosswalk
	Time       time.Duration
}

// ResetTime restores the default green duration; the scheduler calls this on
// phase exit so a one-off RFID extension does not persist across cycles.
func (p *Phase) ResetTime() {
	p.Time = DefaultGreenTime
}

// HasCrosswalkAt reports whether loc is one of this phase's crosswalk
// locations.
func (p *Phase) HasCrosswalkAt(loc int) bool {
	for _, c := range p.Crosswalks {
		if c.Min() == loc || c.Max() == loc {
			return true
		}
	}
	return false
}

// HasTrafficAt reports whether loc is one of this phase's active TSEM
// locations.
func (p *Phase) HasTrafficAt(loc int) bool {
	for _, t := range p.Traffics {
		if t.Location == loc {
			return true
		}
	}
	return false
}

// locationSet is the full set of locations this phase occupies, used by the
// scheduler to compute OFF_TSEM / OFF_CROSS set differences between phases.
func (p *Phase) locationSet() map[int]bool {
	set := make(map[int]bool, len(p.Traffics)+2*len(p.Crosswalks))
	for _, t := range p.Traffics {
		set[t.Location] = true
	}
	for _, c := range p.Crosswalks {
		set[c.Min()] = true
		set[c.Max()] = true
	}
	return set
}

// Build enumerates every maximal independent set over traffics and
// crosswalks and materializes one Phase per set, in deterministic ascending
// order of the phase's smallest occupied location.
func Build(traffics []*semaphore.Traffic, crosswalks []*semaphore.Crosswalk, maxLocation int) []*Phase {
	vertices := make([]Element, 0, len(traffics)+2*len(crosswalks))
	for _, t := range traffics {
		vertices = append(vertices, Element{Location: t.Location, Traffic: t})
	}
	for _, c := range crosswalks {
		vertices = append(vertices, Element{Location: c.Min(), Crosswalk: c})
		vertices = append(vertices, Element{Location: c.Max(), Crosswalk: c})
	}
	sort.SliceStable(vertices, func(i, j int) bool { return vertices[i].Location < vertices[j].Location })

	if len(vertices) == 0 {
		return nil
	}

	sets := findMaximalSets(vertices, maxLocation)

	phases := make([]*Phase, 0, len(sets))
	for _, set := range sets {
		phases = append(phases, materialize(vertices, set))
	}
	sort.SliceStable(phases, func(i, j int) bool {
		return minLocation(phases[i]) < minLocation(phases[j])
	})
	return phases
}

func minLocation(p *Phase) int {
	min := -1
	for loc := range p.locationSet() {
		if min == -1 || loc < min {
			min = loc
		}
	}
	return min
}

func materialize(vertices []Element, idxSet []int) *Phase {
	phase := &Phase{Time: DefaultGreenTime}
	seenCrosswalk := make(map[*semaphore.Crosswalk]bool)
	for _, idx := range idxSet {
		el := vertices[idx]
		if el.Traffic != nil {
			phase.Traffics = append(phase.Traffics, el.Traffic)
		} else if el.Crosswalk != nil && !seenCrosswalk[el.Crosswalk] {
			seenCrosswalk[el.Crosswalk] = true
			phase.Crosswalks = append(phase.Crosswalks, el.Crosswalk)
		}
	}
	sort.Slice(phase.Traffics, func(i, j int) bool { return phase.Traffics[i].Location < phase.Traffics[j].Location })
	sort.Slice(phase.Crosswalks, func(i, j int) bool { return phase.Crosswalks[i].Min() < phase.Crosswalks[j].Min() })
	return phase
}

// findMaximalSets performs the recursive backtracking enumeration described
// in §4.B: pop a candidate, prune the remainder to vertices compatible with
// it, recurse including then excluding the candidate, and at each leaf
// accept only sets that are maximal.
func findMaximalSets(vertices []Element, maxLocation int) [][]int {
	n := len(vertices)
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflict(vertices[i], vertices[j], maxLocation) {
				adj[i][j] = true
				adj[j][i] = true
			}
		}
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	seen := make(map[string]bool)
	var results [][]int

	isMaximal := func(current []int) bool {
		inCurrent := make(map[int]bool, len(current))
		for _, c := range current {
			inCurrent[c] = true
		}
		for w := 0; w < n; w++ {
			if inCurrent[w] {
				continue
			}
			compatible := true
			for _, c := range current {
				if adj[w][c] {
					compatible = false
					break
				}
			}
			if compatible {
				return false
			}
		}
		return true
	}

	var rec func(current, candidates []int)
	rec = func(current, candidates []int) {
		if len(candidates) == 0 {
			if isMaximal(current) {
				key := canonicalKey(current)
				if !seen[key] {
					seen[key] = true
					cp := append([]int(nil), current...)
					results = append(results, cp)
				}
			}
			return
		}

		v := candidates[0]
		rest := candidates[1:]

		pruned := make([]int, 0, len(rest))
		for _, u := range rest {
			if !adj[v][u] {
				pruned = append(pruned, u)
			}
		}
		rec(append(append([]int(nil), current...), v), pruned)
		rec(current, rest)
	}
	rec(nil, all)

	return results
}

func canonicalKey(set []int) string {
	cp := append([]int(nil), set...)
	sort.Ints(cp)
	key := ""
	for _, v := range cp {
		key += fmt.Sprintf("%d,", v)
	}
	return key
}
