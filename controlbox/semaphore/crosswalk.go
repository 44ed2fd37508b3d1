package semaphore

// Crosswalk pairs the two PedestrianSemaphores that share a single physical
// crossing, ordered by location (original_source's setCrosswalks pairs
// consecutive sorted PSEMs by location). Psem1.Location is always the
// smaller of the two.
type Crosswalk struct {
	Psem1 *Pedestrian
	Psem2 *Pedestrian
}

// NewCrosswalk pairs two pedestrian semaphores, ordering them by location.
func NewCrosswalk(a, b *Pedestrian) *Crosswalk {
	if a.Location <= b.Location {
		return &Crosswalk{Psem1: a, Psem2: b}
	}
	return &Crosswalk{Psem1: b, Psem2: a}
}

// Min returns the lower-location semaphore's location.
func (c *Crosswalk) Min() int {
	return c.Psem1.Location
}

// Max returns the higher-location semaphore's location.
func (c *Crosswalk) Max() int {
	return c.Psem2.Location
}

// SwitchTo drives both semaphores in the pair to the same colour.
func (c *Crosswalk) SwitchTo(colour Color, emergency bool) error {
	if err := c.Psem1.SwitchTo(colour, emergency); err != nil {
		return err
	}
	return c.Psem2.SwitchTo(colour, emergency)
}
