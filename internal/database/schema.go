package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RolePatient string = "patient"
	RoleDoctor  string = "doctor"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email          string `gorm:"uniqueIndex;not null"`
	HashedPassword string `gorm:"not null"`
	FullName       string `gorm:"not null"`
	UserType       string `gorm:"size:20;not null"`
	City           string `gorm:"not null"`
	Phone          sql.NullString

	// Doctor fields
	Specialty       sql.NullString
	LicenseNumber   sql.NullString
	ExperienceYears sql.NullInt64

	// Patient fields
	Age    sql.NullInt64
	Gender sql.NullString

	CreatedAt time.Time
	IsActive  bool `gorm:"default:true"`

	AppointmentsAsPatient []Appointment `gorm:"foreignKey:PatientId;constraint:OnDelete:CASCADE"`
	AppointmentsAsDoctor  []Appointment `gorm:"foreignKey:DoctorId;constraint:OnDelete:CASCADE"`
}

const (
	AppointmentScheduled string = "scheduled"
	AppointmentCompleted string = "completed"
	AppointmentCancelled string = "cancelled"
)

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

	MessageType    string `gorm:"size:20;not null"` // 'user' or 'assistant'
	MessageContent string `gorm:"not null"`

	ContextType    sql.NullString
	RelatedDisease sql.NullString

	Timestamp time.Time
}

type ScanRecord struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	User   *User     `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`

	ModelType string         `gorm:"size:20;not null"`
	ImageKey  sql.NullString // object store key of the submitted image

	Predictions datatypes.JSON `gorm:"type:jsonb;not null"` // [{"disease":"…","confidence":0.92},…]

	FinalDiagnosis sql.NullString
	Symptoms       sql.NullString
	Analysis       sql.NullString

	CreatedAt time.Time
}

const (
	NotificationAppointmentBooked    string = "appointment_booked"
	NotificationAppointmentCancelled string = "appointment_cancelled"
	NotificationScanCompleted        string = "scan_completed"
)

type Notification struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index"`

	Kind    string `gorm:"size:30;not null"`
	Message string `gorm:"not null"`
	Read    bool   `gorm:"default:false"`

	CreatedAt time.Time
}
