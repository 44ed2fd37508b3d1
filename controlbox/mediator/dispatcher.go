package mediator

import (
	"context"
	"sync"
)

// Strategy handles one Event on behalf of whichever state currently owns
// the controller. Strategy implementations live outside this package; the
// dispatcher only depends on this narrow interface.
type Strategy interface {
	Handle(Event)
}

// Dispatcher is the single consumer: it pops events off the Queue in FIFO
// order and hands each to the strategy installed for the current state. It
// performs no I/O itself — all effects are delegated to the strategy.
type Dispatcher struct {
	queue *Queue

	mu      sync.Mutex
	current Strategy
}

// NewDispatcher wires a dispatcher to its queue. Call SetStrategy before
// Run to install the initial (SET_UP) strategy.
func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// SetStrategy installs the strategy used for subsequently dispatched
// events; called by a strategy itself when it drives a state transition.
func (d *Dispatcher) SetStrategy(s Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = s
}

// Run pops and dispatches events until the queue is shut down or ctx is
// canceled. Meant to run in its own goroutine, started once at boot.
func (d *Dispatcher) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		d.queue.Shutdown()
	}()

	for {
		event, ok := d.queue.Pop()
		if !ok {
			return
		}
		d.mu.Lock()
		strategy := d.current
		d.mu.Unlock()
		if strategy != nil {
			strategy.Handle(event)
		}
	}
}
