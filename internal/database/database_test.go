package database_test

import (
	"context"
	"database/sql"
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

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func TestMigrations(t *testing.T) {
	db := createDB(t)

	for _, table := range []any{
		&database.User{}, &database.Appointment{}, &database.ChatMessage{}, &database.ScanRecord{}, &database.Notification{},
	} {
		assert.True(t, db.Migrator().HasTable(table))
	}

	// Re-running the migrator on an initialized database is a no-op.
	require.NoError(t, database.GetMigrator(db).Migrate())
}

func TestSessionHistoryOrder(t *testing.T) {
	userId := uuid.New()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	db := createDB(t,
		&database.ChatMessage{UserId: userId, SessionID: "s1", MessageType: "user", MessageContent: "second", Timestamp: base.Add(time.Minute)},
		&database.ChatMessage{UserId: userId, SessionID: "s1", MessageType: "assistant", MessageContent: "third", Timestamp: base.Add(2 * time.Minute)},
		&database.ChatMessage{UserId: userId, SessionID: "s1", MessageType: "user", MessageContent: "first", Timestamp: base},
		&database.ChatMessage{UserId: userId, SessionID: "s2", MessageType: "user", MessageContent: "other session", Timestamp: base},
		&database.ChatMessage{UserId: uuid.New(), SessionID: "s1", MessageType: "user", MessageContent: "other user", Timestamp: base},
	)

	messages, err := database.GetSessionHistory(context.Background(), db, userId, "s1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].MessageContent)
	assert.Equal(t, "second", messages[1].MessageContent)
	assert.Equal(t, "third", messages[2].MessageContent)

	// A limit keeps the most recent messages, still oldest first.
	messages, err = database.GetSessionHistory(context.Background(), db, userId, "s1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].MessageContent)
	assert.Equal(t, "third", messages[1].MessageContent)
}

func TestDoctorHasConflict(t *testing.T) {
	patientId, doctorId := uuid.New(), uuid.New()
	slot := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)

	db := createDB(t,
		&database.User{Id: patientId, Email: "p@example.com", HashedPassword: "x", FullName: "Pat", UserType: database.RolePatient, City: "Indore"},
		&database.User{Id: doctorId, Email: "d@example.com", HashedPassword: "x", FullName: "Doc", UserType: database.RoleDoctor, City: "Indore"},
		&database.Appointment{Id: uuid.New(), PatientId: patientId, DoctorId: doctorId, AppointmentDate: slot, Status: database.AppointmentScheduled},
	)

	conflict, err := database.DoctorHasConflict(context.Background(), db, doctorId, slot)
	require.NoError(t, err)
	assert.True(t, conflict)

	// The conflict window is 30 minutes on either side.
	conflict, err = database.DoctorHasConflict(context.Background(), db, doctorId, slot.Add(20*time.Minute))
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = database.DoctorHasConflict(context.Background(), db, doctorId, slot.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, conflict)

	// Cancelled appointments free the slot.
	require.NoError(t, db.Model(&database.Appointment{}).
		Where("doctor_id = ?", doctorId).
		Update("status", database.AppointmentCancelled).Error)

	conflict, err = database.DoctorHasConflict(context.Background(), db, doctorId, slot)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestUpdateAppointmentStatus(t *testing.T) {
	patientId, doctorId, apptId := uuid.New(), uuid.New(), uuid.New()
	db := createDB(t,
		&database.User{Id: patientId, Email: "p@example.com", HashedPassword: "x", FullName: "Pat", UserType: database.RolePatient, City: "Indore"},
		&database.User{Id: doctorId, Email: "d@example.com", HashedPassword: "x", FullName: "Doc", UserType: database.RoleDoctor, City: "Indore"},
		&database.Appointment{Id: apptId, PatientId: patientId, DoctorId: doctorId, AppointmentDate: time.Now().UTC(), Status: database.AppointmentScheduled},
	)

	require.NoError(t, database.UpdateAppointmentStatus(context.Background(), db, apptId, database.AppointmentCompleted))

	var appt database.Appointment
	require.NoError(t, db.First(&appt, "id = ?", apptId).Error)
	assert.Equal(t, database.AppointmentCompleted, appt.Status)
}

func TestSaveScanRecord(t *testing.T) {
	userId := uuid.New()
	db := createDB(t,
		&database.User{Id: userId, Email: "p@example.com", HashedPassword: "x", FullName: "Pat", UserType: database.RolePatient, City: "Indore"},
	)

	record := database.ScanRecord{
		UserId:    userId,
		ModelType: "skin",
		Symptoms:  sql.NullString{String: "itching", Valid: true},
	}
	predictions := []map[string]any{
		{"disease": "Eczema", "confidence": 0.91},
		{"disease": "Psoriasis", "confidence": 0.05},
	}
	require.NoError(t, database.SaveScanRecord(context.Background(), db, &record, predictions))
	assert.NotEqual(t, uuid.Nil, record.Id)

	var stored database.ScanRecord
	require.NoError(t, db.First(&stored, "user_id = ?", userId).Error)
	assert.Equal(t, "skin", stored.ModelType)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(stored.Predictions, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Eczema", decoded[0]["disease"])
}

func TestSaveNotification(t *testing.T) {
	userId := uuid.New()
	db := createDB(t)

	database.SaveNotification(context.Background(), db, userId, database.NotificationAppointmentBooked, "Appointment booked with Dr. Mehta")

	var notifications []database.Notification
	require.NoError(t, db.Where("user_id = ?", userId).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, database.NotificationAppointmentBooked, notifications[0].Kind)
	assert.False(t, notifications[0].Read)
}
