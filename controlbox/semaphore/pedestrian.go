package semaphore

// Pedestrian is a PedestrianSemaphore: supports only RED and GREEN, and
// optionally carries a Button, a Buzzer and an RFID reader. It tracks a
// button-press counter that the NORMAL strategy consults to enforce "at
// most one green extension per phase per crosswalk"; the scheduler resets
// it on phase completion.
type Pedestrian struct {
	Base

	Button *Button
	Buzzer *Buzzer
	RFID   *RFID

	buttonEvents int // -1 when no button is fitted
}

// PedestrianOption configures optional hardware on a Pedestrian semaphore.
type PedestrianOption func(*Pedestrian)

// WithButton fits a pushbutton. onPress is invoked (by the control box) with
// this semaphore's location whenever a debounced press lands while the
// semaphore shows RED — matching the original's "only counts if currently
// red" rule.
func WithButton(gpioPin, threshold int, onPress func(location int)) PedestrianOption {
	return func(p *Pedestrian) {
		p.buttonEvents = 0
		p.Button = NewButton(gpioPin, threshold, func() {
			if p.Color() == Red {
				p.buttonEvents++
				onPress(p.Location)
			}
		})
	}
}

// WithBuzzer fits a buzzer.
func WithBuzzer() PedestrianOption {
	return func(p *Pedestrian) { p.Buzzer = NewBuzzer() }
}

// WithRFID fits a card reader. onScan is invoked with this semaphore's
// location and the scanned tag's UUID.
func WithRFID(onScan func(location int, uuid uint32)) PedestrianOption {
	return func(p *Pedestrian) {
		p.RFID = NewRFID(func(uuid uint32) {
			onScan(p.Location, uuid)
		})
	}
}

// NewPedestrian builds a PedestrianSemaphore. buttonEvents starts at -1 (no
// button fitted) unless WithButton is applied.
func NewPedestrian(writer LineWriter, location, gpioRed, gpioGreen int, opts ...PedestrianOption) *Pedestrian {
	p := &Pedestrian{
		Base:         newBase(location, writer, map[Color]int{Red: gpioRed, Green: gpioGreen}),
		buttonEvents: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SwitchTo drives the semaphore to colour (RED or GREEN only) and applies
// the buzzer policy: 2 Hz while GREEN, 4 kHz while RED during an active
// emergency, silent otherwise (spec.md §4.C).
func (p *Pedestrian) SwitchTo(colour Color, emergency bool) error {
	if colour != Red && colour != Green {
		return &invalidPedestrianColor{colour}
	}
	if err := p.switchTo(colour); err != nil {
		return err
	}

	if p.Buzzer != nil {
		switch {
		case colour == Green:
			p.Buzzer.activate(pedestrianGreenHz)
		case colour == Red && emergency:
			p.Buzzer.activate(emergencyBuzzerHz)
		default:
			p.Buzzer.deactivate()
		}
	}
	return nil
}

// ButtonEventCounter returns the number of accepted presses since the last
// reset, or -1 if no button is fitted.
func (p *Pedestrian) ButtonEventCounter() int {
	return p.buttonEvents
}

// ResetButtonEventCounter zeroes the counter; called by the scheduler when a
// transition completes (spec.md §9 open-question resolution: reset happens
// on completion, not at transition start).
func (p *Pedestrian) ResetButtonEventCounter() {
	if p.buttonEvents >= 0 {
		p.buttonEvents = 0
	}
}

type invalidPedestrianColor struct{ colour Color }

func (e *invalidPedestrianColor) Error() string {
	return "pedestrian semaphore does not support color " + e.colour.String()
}
