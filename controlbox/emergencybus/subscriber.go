// Package emergencybus subscribes to the emergency-vehicle announcement
// topic (spec.md §6.2) and turns each message into a mediator.Event.
package emergencybus

import "context"

// Subscriber listens for emergency vehicle announcements until ctx is
// cancelled.
type Subscriber interface {
	Run(ctx context.Context) error
}
