package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateAppointmentStatus(ctx context.Context, txn *gorm.DB, appointmentId uuid.UUID, status string) error {
	if err := txn.WithContext(ctx).Model(&Appointment{Id: appointmentId}).Update("status", status).Error; err != nil {
		slog.Error("error updating appointment status", "appointment_id", appointmentId, "status", status, "error", err)
		return err
	}
	return nil
}

// DoctorHasConflict reports whether the doctor already has a scheduled
// appointment within 30 minutes of the given time.
func DoctorHasConflict(ctx context.Context, db *gorm.DB, doctorId uuid.UUID, at time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Appointment{}).
		Where("doctor_id = ? AND appointment_date BETWEEN ? AND ? AND status = ?",
			doctorId, at.Add(-30*time.Minute), at.Add(30*time.Minute), AppointmentScheduled).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("could not check doctor availability: %w", err)
	}
	return count > 0, nil
}

func SaveChatMessage(ctx context.Context, db *gorm.DB, msg *ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// GetSessionHistory returns the most recent messages of one chat session in
// chronological order. A limit of 0 returns the whole session.
func GetSessionHistory(ctx context.Context, db *gorm.DB, userId uuid.UUID, sessionID string, limit int) ([]ChatMessage, error) {
	query := db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userId, sessionID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("could not query chat history: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func SaveScanRecord(ctx context.Context, db *gorm.DB, record *ScanRecord, predictions any) error {
	blob, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("could not marshal predictions: %w", err)
	}

	record.Predictions = blob
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save scan record: %w", err)
	}
	return nil
}

// SaveNotification is best effort, a failed insert is logged and dropped so
// the triggering operation still succeeds.
func SaveNotification(ctx context.Context, db *gorm.DB, userId uuid.UUID, kind, message string) {
	notification := Notification{
		Id:        uuid.New(),
		UserId:    userId,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := db.WithContext(ctx).Create(&notification).Error; err != nil {
		slog.Error("error saving notification", "user_id", userId, "kind", kind, "error", err)
	}
}
