package events

import (
	"context"
	"encoding/json"
)

type inMemoryEvent struct {
	queue   string
	payload []byte
}

func (e *inMemoryEvent) Type() string {
	return e.queue
}

func (e *inMemoryEvent) Payload() []byte {
	return e.payload
}

func (e *inMemoryEvent) Ack() error {
	return nil
}

func (e *inMemoryEvent) Nack() error {
	return nil
}

func (e *inMemoryEvent) Reject() error {
	return nil
}

// InMemoryQueue is the single process stand-in for RabbitMQ used by local
// deployments and tests. It is both a Publisher and a Reciever.
type InMemoryQueue struct {
	events chan Event
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		events: make(chan Event, 100),
	}
}

func (q *InMemoryQueue) publishInternal(queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.events <- &inMemoryEvent{queue: queue, payload: data}

	return nil
}

func (q *InMemoryQueue) PublishAppointmentBooked(ctx context.Context, payload AppointmentBookedPayload) error {
	return q.publishInternal(AppointmentBookedQueue, payload)
}

func (q *InMemoryQueue) PublishAppointmentCancelled(ctx context.Context, payload AppointmentCancelledPayload) error {
	return q.publishInternal(AppointmentCancelledQueue, payload)
}

func (q *InMemoryQueue) PublishScanCompleted(ctx context.Context, payload ScanCompletedPayload) error {
	return q.publishInternal(ScanCompletedQueue, payload)
}

func (q *InMemoryQueue) Events() <-chan Event {
	return q.events
}

func (q *InMemoryQueue) Close() {
	if q.events != nil {
		close(q.events)
		q.events = nil
	}
}
