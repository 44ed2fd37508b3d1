package emergencybus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrem20/allways-safe/controlbox/mediator"
)

// DefaultChannel is the topic name from spec.md §6.2.
const DefaultChannel = "EmergencyAlert"

// alertMessage is the wire shape of one EmergencyAlert publication. The
// original transport (FastDDS, reliable/transient-local) signals start and
// finish through publisher/subscriber match and unmatch events, which a
// plain Redis channel has no equivalent of; the Go-native substitute is an
// explicit Event field ("start"/"finish") carried alongside the announcement
// fields spec.md §6.2 already specifies.
type alertMessage struct {
	Event         string `json:"event"`
	SenderID      string `json:"sender_id"`
	Origin        int    `json:"origin"`
	Destination   int    `json:"destination"`
	PriorityLevel int    `json:"priority_level"`
}

// RedisSubscriber is the go-redis/v9 Pub/Sub analog of the original's
// reliable/transient-local DDS topic, grounded on the teacher's
// store.RedisStore connection-check pattern (ping on construction, context
// timeouts on every blocking call).
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	queue   *mediator.Queue
}

var _ Subscriber = (*RedisSubscriber)(nil)

// NewRedisSubscriber connects to addr and verifies it before returning,
// exactly as the teacher's NewRedisStore does.
func NewRedisSubscriber(ctx context.Context, addr string, queue *mediator.Queue) (*RedisSubscriber, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &RedisSubscriber{client: client, channel: DefaultChannel, queue: queue}, nil
}

// Run subscribes to the emergency alert channel and pushes an
// EmergencyStart or EmergencyFinish event for every message, until ctx is
// cancelled.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *RedisSubscriber) handle(payload string) {
	var m alertMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Printf("[emergencybus] malformed alert payload, dropping: %v", err)
		return
	}

	if m.Event == "finish" {
		s.queue.Push(mediator.Event{Kind: mediator.KindEmergencyFinish})
		return
	}

	s.queue.Push(mediator.Event{
		Kind: mediator.KindEmergencyStart,
		EmergencyStart: mediator.EmergencyStart{
			Plate:       m.SenderID,
			Location:    m.Origin,
			Destination: m.Destination,
			Priority:    m.PriorityLevel,
		},
	})
}
