package semaphore

import (
	"sync"
	"time"
)

// buttonDebounce is the steady-clock window within which repeated edges from
// the same physical press are folded into a single logical press (spec.md
// §5 "Debounce without shared mutable floats").
const buttonDebounce = 200 * time.Millisecond

// Button is a pedestrian pushbutton. The real driver runs an edge-interrupt
// handler on its own thread; Trigger stands in for that handler being
// invoked by the GPIO layer, so the debounce and callback logic can be
// exercised without real hardware.
type Button struct {
	gpioPin   int
	threshold int
	onPress   func()

	mu           sync.Mutex
	lastAccepted time.Time
}

// NewButton wires a button to its GPIO pin, configured debounce threshold and
// the callback invoked on an accepted press. threshold is opaque hardware
// tuning data (minimum contact duration); the control box does not interpret
// it beyond requiring it be present when hasButton==1 (§4.A).
func NewButton(gpioPin, threshold int, onPress func()) *Button {
	return &Button{gpioPin: gpioPin, threshold: threshold, onPress: onPress}
}

// Trigger records a physical edge at time now and invokes onPress if it
// falls outside the debounce window of the last accepted press.
func (b *Button) Trigger(now time.Time) {
	b.mu.Lock()
	if now.Sub(b.lastAccepted) < buttonDebounce {
		b.mu.Unlock()
		return
	}
	b.lastAccepted = now
	b.mu.Unlock()

	b.onPress()
}

// Press triggers a press at the current time; convenience for callers that
// don't need to control the debounce clock explicitly.
func (b *Button) Press() {
	b.Trigger(time.Now())
}
