// Package semaphore models the physical signal heads at the intersection:
// plain traffic semaphores, pedestrian semaphores with their buttons,
// buzzers and RFID readers, and the crosswalks they pair into.
package semaphore

import "fmt"

// Color is the illuminated state of a semaphore. Exactly one color is lit at
// any moment (spec.md §3 "exactly one color" invariant); RED is the initial
// state for every semaphore.
type Color int

const (
	Red Color = iota
	Green
	Yellow
)

func (c Color) String() string {
	switch c {
	case Red:
		return "RED"
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	default:
		return "UNKNOWN"
	}
}

// Base is the shared state and behavior of every semaphore: a location, the
// GPIO line for each supported color, and the currently lit color.
type Base struct {
	Location int
	lines    map[Color]int
	current  Color
	writer   LineWriter
}

func newBase(location int, writer LineWriter, lines map[Color]int) Base {
	return Base{Location: location, lines: lines, current: Red, writer: writer}
}

// Color returns the currently illuminated color.
func (b *Base) Color() Color { return b.current }

// switchTo turns off the current line and turns on the line for colour,
// retrying once on a hardware write failure (§7 HardwareWriteError policy).
// Off-before-on ordering keeps the exactly-one-color invariant observable
// even mid-transition (spec.md §8 invariant 6).
func (b *Base) switchTo(colour Color) error {
	line, ok := b.lines[colour]
	if !ok {
		return fmt.Errorf("semaphore %d: color %s not configured", b.Location, colour)
	}

	if oldLine, ok := b.lines[b.current]; ok && oldLine != line {
		if err := b.clearWithRetry(oldLine); err != nil {
			return err
		}
	}

	if err := b.setWithRetry(line); err != nil {
		return err
	}

	b.current = colour
	return nil
}

func (b *Base) setWithRetry(line int) error {
	if err := b.writer.Set(line); err != nil {
		if err2 := b.writer.Set(line); err2 != nil {
			return err2
		}
	}
	return nil
}

func (b *Base) clearWithRetry(line int) error {
	if err := b.writer.Clear(line); err != nil {
		if err2 := b.writer.Clear(line); err2 != nil {
			return err2
		}
	}
	return nil
}
