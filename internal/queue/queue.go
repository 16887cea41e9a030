package queue

import (
	"context"
	"fmt"
)

// Publisher publishes dispatch events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg EventMessage) error
	Close() error
}

// Work queues for dispatch events. Each has a dead-letter twin.
const (
	QueueRecipientOutcomes = "dispatch.recipient_outcomes"
	QueueRunEvents         = "dispatch.run_events"
)

var eventQueues = []string{
	QueueRecipientOutcomes,
	QueueRunEvents,
}

// QueueFor returns the queue a given event kind is routed to.
func QueueFor(kind EventKind) string {
	if kind == EventRecipientFinished {
		return QueueRecipientOutcomes
	}
	return QueueRunEvents
}

// DLQName returns the dead-letter queue name, e.g. dlq.dispatch.run_events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// QueueNames returns all event queues.
func QueueNames() []string {
	queues := make([]string, len(eventQueues))
	copy(queues, eventQueues)
	return queues
}

// DLQNames returns the dead-letter queue of every event queue.
func DLQNames() []string {
	queues := make([]string, 0, len(eventQueues))
	for _, queue := range eventQueues {
		queues = append(queues, DLQName(queue))
	}
	return queues
}
