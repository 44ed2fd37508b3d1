// Package config validates the declarative PSEM/TSEM documents delivered by
// the cloud collaborator during SET_UP and turns them into the semaphore and
// crosswalk entities the rest of the control box owns.
package config

import (
	"encoding/json"
	"regexp"
	"sort"

	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

var namePattern = regexp.MustCompile(`^(PS|TS)\d+$`)

type psemEntry struct {
	Name            string `json:"name"`
	Location        *int   `json:"location"`
	GpioRed         *int   `json:"gpio_red"`
	GpioGreen       *int   `json:"gpio_green"`
	HasButton       *int   `json:"hasButton"`
	HasCardReader   *int   `json:"hasCardReader"`
	HasBuzzer       *int   `json:"hasBuzzer"`
	GpioButton      *int   `json:"gpio_button"`
	ButtonThreshold *int   `json:"buttonThreshold"`
}

type tsemEntry struct {
	Name         string `json:"name"`
	Location     *int   `json:"location"`
	Destinations []int  `json:"destinations"`
	GpioRed      *int   `json:"gpio_red"`
	GpioGreen    *int   `json:"gpio_green"`
	GpioYellow   *int   `json:"gpio_yellow"`
}

// Callbacks lets the caller (normally the mediator) learn about hardware
// stimuli without the loader depending on the mediator's event types.
type Callbacks struct {
	OnButtonPress func(location int)
	OnRFIDScan    func(location int, uuid uint32)
}

// Result is everything SET_UP needs once PSEM/TSEM documents have been
// loaded: the semaphore entities and the greatest location/destination seen.
type Result struct {
	Traffics    []*semaphore.Traffic
	Crosswalks  []*semaphore.Crosswalk
	MaxLocation int
}

// Load validates psemJSON and tsemJSON, claims GPIO lines through allocator,
// and constructs the Traffic and Crosswalk entities. Every failure aborts
// with one of the typed config errors; no entities are left partially
// claimed on error from Load's own perspective — callers treat any error as
// fatal to SET_UP and exit (the allocator itself is not rolled back, since
// the process exits immediately after).
func Load(psemJSON, tsemJSON []byte, writer semaphore.LineWriter, allocator *semaphore.LineAllocator, cb Callbacks) (*Result, error) {
	var psems []psemEntry
	if err := json.Unmarshal(psemJSON, &psems); err != nil {
		return nil, &ConfigInvalid{Name: "PSEM document", Field: "<root>"}
	}
	var tsems []tsemEntry
	if err := json.Unmarshal(tsemJSON, &tsems); err != nil {
		return nil, &ConfigInvalid{Name: "TSEM document", Field: "<root>"}
	}

	locations := make(map[int]bool)
	maxLocation := 0
	noteLocation := func(loc int) {
		if loc > maxLocation {
			maxLocation = loc
		}
	}

	if len(psems)%2 != 0 {
		return nil, &CrosswalkPairing{Count: len(psems)}
	}

	pedestrians := make([]*semaphore.Pedestrian, 0, len(psems))
	for _, p := range psems {
		if err := validatePSEM(p); err != nil {
			return nil, err
		}
		if locations[*p.Location] {
			return nil, &LocationCollision{Location: *p.Location}
		}
		locations[*p.Location] = true
		noteLocation(*p.Location)

		if err := allocator.Claim(*p.GpioRed); err != nil {
			return nil, &GpioCollision{Name: p.Name, Line: *p.GpioRed}
		}
		if err := allocator.Claim(*p.GpioGreen); err != nil {
			return nil, &GpioCollision{Name: p.Name, Line: *p.GpioGreen}
		}

		var opts []semaphore.PedestrianOption
		if deref(p.HasButton) == 1 {
			if err := allocator.Claim(*p.GpioButton); err != nil {
				return nil, &GpioCollision{Name: p.Name, Line: *p.GpioButton}
			}
			opts = append(opts, semaphore.WithButton(*p.GpioButton, *p.ButtonThreshold, cb.OnButtonPress))
		}
		if deref(p.HasBuzzer) == 1 {
			opts = append(opts, semaphore.WithBuzzer())
		}
		if deref(p.HasCardReader) == 1 {
			opts = append(opts, semaphore.WithRFID(cb.OnRFIDScan))
		}

		pedestrians = append(pedestrians, semaphore.NewPedestrian(writer, *p.Location, *p.GpioRed, *p.GpioGreen, opts...))
	}

	sort.Slice(pedestrians, func(i, j int) bool { return pedestrians[i].Location < pedestrians[j].Location })
	crosswalks := make([]*semaphore.Crosswalk, 0, len(pedestrians)/2)
	for i := 0; i+1 < len(pedestrians); i += 2 {
		crosswalks = append(crosswalks, semaphore.NewCrosswalk(pedestrians[i], pedestrians[i+1]))
	}

	traffics := make([]*semaphore.Traffic, 0, len(tsems))
	for _, t := range tsems {
		if err := validateTSEM(t); err != nil {
			return nil, err
		}
		if locations[*t.Location] {
			return nil, &LocationCollision{Location: *t.Location}
		}
		locations[*t.Location] = true
		noteLocation(*t.Location)
		for _, d := range t.Destinations {
			noteLocation(d)
		}

		if err := allocator.Claim(*t.GpioRed); err != nil {
			return nil, &GpioCollision{Name: t.Name, Line: *t.GpioRed}
		}
		if err := allocator.Claim(*t.GpioGreen); err != nil {
			return nil, &GpioCollision{Name: t.Name, Line: *t.GpioGreen}
		}
		if err := allocator.Claim(*t.GpioYellow); err != nil {
			return nil, &GpioCollision{Name: t.Name, Line: *t.GpioYellow}
		}

		traffics = append(traffics, semaphore.NewTraffic(writer, *t.Location, t.Destinations, *t.GpioRed, *t.GpioGreen, *t.GpioYellow))
	}
	sort.Slice(traffics, func(i, j int) bool { return traffics[i].Location < traffics[j].Location })

	return &Result{Traffics: traffics, Crosswalks: crosswalks, MaxLocation: maxLocation}, nil
}

func validatePSEM(p psemEntry) error {
	if !namePattern.MatchString(p.Name) {
		return &ConfigInvalid{Name: p.Name, Field: "name"}
	}
	if p.Location == nil {
		return &ConfigInvalid{Name: p.Name, Field: "location"}
	}
	if p.GpioRed == nil {
		return &ConfigInvalid{Name: p.Name, Field: "gpio_red"}
	}
	if p.GpioGreen == nil {
		return &ConfigInvalid{Name: p.Name, Field: "gpio_green"}
	}
	if p.HasButton == nil {
		return &ConfigInvalid{Name: p.Name, Field: "hasButton"}
	}
	if p.HasCardReader == nil {
		return &ConfigInvalid{Name: p.Name, Field: "hasCardReader"}
	}
	if p.HasBuzzer == nil {
		return &ConfigInvalid{Name: p.Name, Field: "hasBuzzer"}
	}
	if *p.HasButton == 1 && (p.GpioButton == nil || p.ButtonThreshold == nil) {
		return &ConfigInvalid{Name: p.Name, Field: "gpio_button/buttonThreshold"}
	}
	return nil
}

func validateTSEM(t tsemEntry) error {
	if !namePattern.MatchString(t.Name) {
		return &ConfigInvalid{Name: t.Name, Field: "name"}
	}
	if t.Location == nil {
		return &ConfigInvalid{Name: t.Name, Field: "location"}
	}
	if len(t.Destinations) == 0 {
		return &ConfigInvalid{Name: t.Name, Field: "destinations"}
	}
	if t.GpioRed == nil {
		return &ConfigInvalid{Name: t.Name, Field: "gpio_red"}
	}
	if t.GpioGreen == nil {
		return &ConfigInvalid{Name: t.Name, Field: "gpio_green"}
	}
	if t.GpioYellow == nil {
		return &ConfigInvalid{Name: t.Name, Field: "gpio_yellow"}
	}
	return nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
