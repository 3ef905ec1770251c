package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"medix-backend/internal/database"

	"gorm.io/gorm"
)

// Notifier consumes appointment and scan events and turns them into
// notification rows for the users involved.
type Notifier struct {
	db       *gorm.DB
	reciever Reciever
}

func NewNotifier(db *gorm.DB, reciever Reciever) *Notifier {
	return &Notifier{db: db, reciever: reciever}
}

func (n *Notifier) Start() {
	slog.Info("starting notifier")

	for evt := range n.reciever.Events() {
		n.ProcessEvent(evt)
	}
}

func (n *Notifier) Stop() {
	slog.Info("stopping notifier")

	n.reciever.Close()
}

func (n *Notifier) ProcessEvent(evt Event) {
	ctx := context.Background()

	var err error
	switch evt.Type() {

	case AppointmentBookedQueue:
		var payload AppointmentBookedPayload
		if err = json.Unmarshal(evt.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling appointment booked event", "error", err)
			if err := evt.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = n.notifyAppointmentBooked(ctx, payload)

	case AppointmentCancelledQueue:
		var payload AppointmentCancelledPayload
		if err = json.Unmarshal(evt.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling appointment cancelled event", "error", err)
			if err := evt.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = n.notifyAppointmentCancelled(ctx, payload)

	case ScanCompletedQueue:
		var payload ScanCompletedPayload
		if err = json.Unmarshal(evt.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling scan completed event", "error", err)
			if err := evt.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = n.notifyScanCompleted(ctx, payload)

	default:
		slog.Error("received unknown event type", "queue", evt.Type())
		if err := evt.Reject(); err != nil { // reject unknown message type
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing event", "queue", evt.Type(), "error", err)
		if err := evt.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		if err := evt.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

const appointmentTimeFormat = "Jan 2, 2006 at 3:04 PM"

func (n *Notifier) notifyAppointmentBooked(ctx context.Context, payload AppointmentBookedPayload) error {
	when := payload.Date.Format(appointmentTimeFormat)

	database.SaveNotification(ctx, n.db, payload.PatientId, database.NotificationAppointmentBooked,
		fmt.Sprintf("Your appointment with Dr. %s on %s is confirmed.", payload.DoctorName, when))
	database.SaveNotification(ctx, n.db, payload.DoctorId, database.NotificationAppointmentBooked,
		fmt.Sprintf("New appointment with %s on %s.", payload.PatientName, when))

	return nil
}

func (n *Notifier) notifyAppointmentCancelled(ctx context.Context, payload AppointmentCancelledPayload) error {
	when := payload.Date.Format(appointmentTimeFormat)

	database.SaveNotification(ctx, n.db, payload.PatientId, database.NotificationAppointmentCancelled,
		fmt.Sprintf("Your appointment with Dr. %s on %s was cancelled.", payload.DoctorName, when))
	database.SaveNotification(ctx, n.db, payload.DoctorId, database.NotificationAppointmentCancelled,
		fmt.Sprintf("Appointment with %s on %s was cancelled.", payload.PatientName, when))

	return nil
}

func (n *Notifier) notifyScanCompleted(ctx context.Context, payload ScanCompletedPayload) error {
	database.SaveNotification(ctx, n.db, payload.UserId, database.NotificationScanCompleted,
		fmt.Sprintf("Your %s scan analysis is ready: %s (%.1f%% confidence).", payload.ModelType, payload.TopDisease, payload.Confidence*100))

	return nil
}
