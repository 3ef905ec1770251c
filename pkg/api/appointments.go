package api

import (
	"time"

	"github.com/google/uuid"
)

type SearchDoctorsRequest struct {
	City      string `schema:"city"`
	Specialty string `schema:"specialty"`
	Query     string `schema:"q"`
}

type Doctor struct {
	Id              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialty       *string   `json:"specialty"`
	City            string    `json:"city"`
	ExperienceYears *int64    `json:"experience_years"`
	Phone           *string   `json:"phone"`
}

type SearchDoctorsResponse struct {
	Doctors []Doctor `json:"doctors"`
}

type SpecialtiesResponse struct {
	Specialties []string `json:"specialties"`
}

type BookAppointmentRequest struct {
	DoctorId        uuid.UUID `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DiseaseType     string    `json:"disease_type"`
	Symptoms        string    `json:"symptoms"`
}

type BookAppointmentResponse struct {
	Message         string    `json:"message"`
	AppointmentId   uuid.UUID `json:"appointment_id"`
	MeetLink        string    `json:"meet_link"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
}

// PatientAppointment is the appointment view served to patients, showing the
// doctor's side of the booking.
type PatientAppointment struct {
	Id              uuid.UUID `json:"id"`
	DoctorName      string    `json:"doctor_name"`
	DoctorSpecialty *string   `json:"doctor_specialty"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	DiseaseType     *string   `json:"disease_type"`
	MeetLink        *string   `json:"meet_link"`
	Symptoms        *string   `json:"symptoms"`
}

// DoctorAppointment is the appointment view served to doctors, showing the
// patient's side of the booking.
type DoctorAppointment struct {
	Id              uuid.UUID `json:"id"`
	PatientName     string    `json:"patient_name"`
	PatientAge      *int64    `json:"patient_age"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	DiseaseType     *string   `json:"disease_type"`
	MeetLink        *string   `json:"meet_link"`
	Symptoms        *string   `json:"symptoms"`
}

type PatientAppointmentsResponse struct {
	Appointments []PatientAppointment `json:"appointments"`
}

type DoctorAppointmentsResponse struct {
	Appointments []DoctorAppointment `json:"appointments"`
}

type UpdateAppointmentStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
