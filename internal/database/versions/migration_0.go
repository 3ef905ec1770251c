package versions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// These are snapshots of the schema at migration 0. Later migrations must not
// reuse them, so schema changes keep old migrations replayable.

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email          string `gorm:"uniqueIndex;not null"`
	HashedPassword string `gorm:"not null"`
	FullName       string `gorm:"not null"`
	UserType       string `gorm:"size:20;not null"`
	City           string `gorm:"not null"`
	Phone          sql.NullString

	Specialty       sql.NullString
	LicenseNumber   sql.NullString
	ExperienceYears sql.NullInt64

	Age    sql.NullInt64
	Gender sql.NullString

	CreatedAt time.Time
	IsActive  bool `gorm:"default:true"`

	AppointmentsAsPatient []Appointment `gorm:"foreignKey:PatientId;constraint:OnDelete:CASCADE"`
	AppointmentsAsDoctor  []Appointment `gorm:"foreignKey:DoctorId;constraint:OnDelete:CASCADE"`
}

type Appointment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	PatientId uuid.UUID `gorm:"type:uuid;not null"`
	Patient   *User     `gorm:"foreignKey:PatientId"`
	DoctorId  uuid.UUID `gorm:"type:uuid;not null"`
	Doctor    *User     `gorm:"foreignKey:DoctorId"`

	AppointmentDate time.Time `gorm:"not null;index"`
	Status          string    `gorm:"size:20;default:scheduled"`

	DiseaseType sql.NullString
	Symptoms    sql.NullString

	MeetLink  sql.NullString
	MeetingId sql.NullString

	Notes     sql.NullString
	CreatedAt time.Time
}

type ChatMessage struct {
	ID        uint      `gorm:"primary_key"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`
	SessionID string    `gorm:"not null;index"`

	MessageType    string `gorm:"size:20;not null"`
	MessageContent string `gorm:"not null"`

	ContextType    sql.NullString
	RelatedDisease sql.NullString

	Timestamp time.Time
}

type ScanRecord struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	User   *User     `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`

	ModelType string `gorm:"size:20;not null"`
	ImageKey  sql.NullString

	Predictions datatypes.JSON `gorm:"type:jsonb;not null"`

	FinalDiagnosis sql.NullString
	Symptoms       sql.NullString
	Analysis       sql.NullString

	CreatedAt time.Time
}

type Notification struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index"`

	Kind    string `gorm:"size:30;not null"`
	Message string `gorm:"not null"`
	Read    bool   `gorm:"default:false"`

	CreatedAt time.Time
}

func Migration0(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{}, &Appointment{}, &ChatMessage{}, &ScanRecord{}, &Notification{},
	)
	if err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
