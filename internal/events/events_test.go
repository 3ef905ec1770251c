package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"medix-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

func TestInMemoryQueueRoundTrip(t *testing.T) {
	queue := NewInMemoryQueue()

	booked := AppointmentBookedPayload{
		AppointmentId: uuid.New(),
		PatientId:     uuid.New(),
		DoctorId:      uuid.New(),
		PatientName:   "Asha Rao",
		DoctorName:    "Mehta",
		Date:          time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		MeetLink:      "https://meet.google.com/abc12345",
	}
	scan := ScanCompletedPayload{
		ScanId:     uuid.New(),
		UserId:     uuid.New(),
		ModelType:  "skin",
		TopDisease: "Melanoma",
		Confidence: 0.91,
	}

	require.NoError(t, queue.PublishAppointmentBooked(context.Background(), booked))
	require.NoError(t, queue.PublishScanCompleted(context.Background(), scan))
	queue.Close()

	evt := <-queue.Events()
	assert.Equal(t, AppointmentBookedQueue, evt.Type())
	var gotBooked AppointmentBookedPayload
	require.NoError(t, json.Unmarshal(evt.Payload(), &gotBooked))
	assert.Equal(t, booked, gotBooked)

	evt = <-queue.Events()
	assert.Equal(t, ScanCompletedQueue, evt.Type())
	var gotScan ScanCompletedPayload
	require.NoError(t, json.Unmarshal(evt.Payload(), &gotScan))
	assert.Equal(t, scan, gotScan)

	_, ok := <-queue.Events()
	assert.False(t, ok)
}

func TestNotifierAppointmentBooked(t *testing.T) {
	db := createDB(t)

	patientId, doctorId := uuid.New(), uuid.New()

	queue := NewInMemoryQueue()
	require.NoError(t, queue.PublishAppointmentBooked(context.Background(), AppointmentBookedPayload{
		AppointmentId: uuid.New(),
		PatientId:     patientId,
		DoctorId:      doctorId,
		PatientName:   "Asha Rao",
		DoctorName:    "Mehta",
		Date:          time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}))
	queue.Close()

	notifier := NewNotifier(db, queue)
	notifier.Start() // returns once the queue is drained

	var patientNotes []database.Notification
	require.NoError(t, db.Where("user_id = ?", patientId).Find(&patientNotes).Error)
	require.Len(t, patientNotes, 1)
	assert.Equal(t, database.NotificationAppointmentBooked, patientNotes[0].Kind)
	assert.Equal(t, "Your appointment with Dr. Mehta on Mar 14, 2025 at 10:30 AM is confirmed.", patientNotes[0].Message)
	assert.False(t, patientNotes[0].Read)

	var doctorNotes []database.Notification
	require.NoError(t, db.Where("user_id = ?", doctorId).Find(&doctorNotes).Error)
	require.Len(t, doctorNotes, 1)
	assert.Equal(t, "New appointment with Asha Rao on Mar 14, 2025 at 10:30 AM.", doctorNotes[0].Message)
}

func TestNotifierAppointmentCancelled(t *testing.T) {
	db := createDB(t)

	patientId, doctorId := uuid.New(), uuid.New()

	queue := NewInMemoryQueue()
	require.NoError(t, queue.PublishAppointmentCancelled(context.Background(), AppointmentCancelledPayload{
		AppointmentId: uuid.New(),
		PatientId:     patientId,
		DoctorId:      doctorId,
		PatientName:   "Asha Rao",
		DoctorName:    "Mehta",
		Date:          time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}))
	queue.Close()

	NewNotifier(db, queue).Start()

	var notes []database.Notification
	require.NoError(t, db.Find(&notes).Error)
	require.Len(t, notes, 2)
	for _, note := range notes {
		assert.Equal(t, database.NotificationAppointmentCancelled, note.Kind)
		assert.Contains(t, note.Message, "cancelled")
	}
}

func TestNotifierScanCompleted(t *testing.T) {
	db := createDB(t)

	userId := uuid.New()

	queue := NewInMemoryQueue()
	require.NoError(t, queue.PublishScanCompleted(context.Background(), ScanCompletedPayload{
		ScanId:     uuid.New(),
		UserId:     userId,
		ModelType:  "chest",
		TopDisease: "Pneumonia",
		Confidence: 0.874,
	}))
	queue.Close()

	NewNotifier(db, queue).Start()

	var notes []database.Notification
	require.NoError(t, db.Where("user_id = ?", userId).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, database.NotificationScanCompleted, notes[0].Kind)
	assert.Equal(t, "Your chest scan analysis is ready: Pneumonia (87.4% confidence).", notes[0].Message)
}

func TestNotifierSkipsMalformedEvents(t *testing.T) {
	db := createDB(t)

	notifier := NewNotifier(db, NewInMemoryQueue())

	notifier.ProcessEvent(&inMemoryEvent{queue: AppointmentBookedQueue, payload: []byte("not json")})
	notifier.ProcessEvent(&inMemoryEvent{queue: "unknown_queue", payload: []byte("{}")})

	var count int64
	require.NoError(t, db.Model(&database.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}
