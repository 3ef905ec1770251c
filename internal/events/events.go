package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentBookedQueue    = "appointment_booked_queue"
	AppointmentCancelledQueue = "appointment_cancelled_queue"
	ScanCompletedQueue        = "scan_completed_queue"
	RetryDelay                = 5 * time.Second
	MaxConnectRetry           = 5
)

type Event interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type AppointmentBookedPayload struct {
	AppointmentId uuid.UUID
	PatientId     uuid.UUID
	DoctorId      uuid.UUID
	PatientName   string
	DoctorName    string
	Date          time.Time
	MeetLink      string
}

type AppointmentCancelledPayload struct {
	AppointmentId uuid.UUID
	PatientId     uuid.UUID
	DoctorId      uuid.UUID
	PatientName   string
	DoctorName    string
	Date          time.Time
}

type ScanCompletedPayload struct {
	ScanId     uuid.UUID
	UserId     uuid.UUID
	ModelType  string
	TopDisease string
	Confidence float64
}

type Publisher interface {
	PublishAppointmentBooked(ctx context.Context, payload AppointmentBookedPayload) error

	PublishAppointmentCancelled(ctx context.Context, payload AppointmentCancelledPayload) error

	PublishScanCompleted(ctx context.Context, payload ScanCompletedPayload) error

	Close()
}

type Reciever interface {
	Events() <-chan Event

	Close()
}
