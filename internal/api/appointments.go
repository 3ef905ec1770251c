package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"medix-backend/internal/auth"
	"medix-backend/internal/database"
	"medix-backend/internal/events"
	"medix-backend/internal/meet"
	"medix-backend/internal/search"
	"medix-backend/pkg/api"
)

const maxDoctorResults = 20

type AppointmentService struct {
	db        *gorm.DB
	tokens    *auth.TokenIssuer
	meetings  meet.Provisioner
	publisher events.Publisher
}

func NewAppointmentService(db *gorm.DB, tokens *auth.TokenIssuer, meetings meet.Provisioner, publisher events.Publisher) *AppointmentService {
	return &AppointmentService{db: db, tokens: tokens, meetings: meetings, publisher: publisher}
}

func (s *AppointmentService) AddRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/doctors/search", RestHandler(s.SearchDoctors))
		r.Get("/doctors/specialties", RestHandler(s.GetSpecialties))

		r.Group(func(r chi.Router) {
			r.Use(s.tokens.Middleware(s.db))
			r.Post("/book", RestHandler(s.BookAppointment))
			r.Get("/my-appointments", RestHandler(s.MyAppointments))
			r.Put("/{appointment_id}/status", RestHandler(s.UpdateStatus))
		})
	})
}

// SearchDoctors supports two query styles: plain city/specialty substring
// params, or a full filter expression in the q param, e.g.
// q=city CONTAINS "pune" AND experience > 5.
func (s *AppointmentService) SearchDoctors(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.SearchDoctorsRequest](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).
		Model(&database.User{}).
		Where("user_type = ? AND is_active = ?", database.RoleDoctor, true)

	if params.Query != "" {
		filter, err := search.ParseQuery(params.Query)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid search query: %v", err)
		}
		clause, args := filter.Clause()
		query = query.Where(clause, args...)
	} else {
		if params.City == "" {
			return nil, CodedErrorf(http.StatusBadRequest, "city parameter is required")
		}
		query = query.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(params.City)+"%")
		if params.Specialty != "" {
			query = query.Where("LOWER(specialty) LIKE ?", "%"+strings.ToLower(params.Specialty)+"%")
		}
	}

	var doctors []database.User
	if err := query.Limit(maxDoctorResults).Find(&doctors).Error; err != nil {
		slog.Error("error searching doctors", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to search doctors")
	}

	return api.SearchDoctorsResponse{Doctors: convertDoctors(doctors)}, nil
}

func (s *AppointmentService) GetSpecialties(r *http.Request) (any, error) {
	var specialties []string
	err := s.db.WithContext(r.Context()).
		Model(&database.User{}).
		Where("user_type = ? AND is_active = ? AND specialty IS NOT NULL", database.RoleDoctor, true).
		Distinct().
		Pluck("specialty", &specialties).Error
	if err != nil {
		slog.Error("error listing specialties", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list specialties")
	}

	result := make([]string, 0, len(specialties))
	for _, specialty := range specialties {
		if specialty != "" {
			result = append(result, specialty)
		}
	}

	return api.SpecialtiesResponse{Specialties: result}, nil
}

func (s *AppointmentService) BookAppointment(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}
	if user.UserType != database.RolePatient {
		return nil, CodedErrorf(http.StatusForbidden, "Only patients can book appointments")
	}

	req, err := ParseRequest[api.BookAppointmentRequest](r)
	if err != nil {
		return nil, err
	}

	var doctor database.User
	err = s.db.WithContext(r.Context()).
		Where("id = ? AND user_type = ? AND is_active = ?", req.DoctorId, database.RoleDoctor, true).
		First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Doctor not found")
		}
		slog.Error("error looking up doctor", "doctor_id", req.DoctorId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to book appointment")
	}

	if !req.AppointmentDate.After(time.Now()) {
		return nil, CodedErrorf(http.StatusBadRequest, "Appointment must be scheduled for a future date")
	}

	conflict, err := database.DoctorHasConflict(r.Context(), s.db, doctor.Id, req.AppointmentDate)
	if err != nil {
		slog.Error("error checking doctor availability", "doctor_id", doctor.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to book appointment")
	}
	if conflict {
		return nil, CodedErrorf(http.StatusBadRequest, "Doctor is not available at this time")
	}

	link, err := s.meetings.CreateMeeting(r.Context(), req.AppointmentDate)
	if err != nil {
		slog.Error("error provisioning meeting link", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to book appointment")
	}

	appointment := database.Appointment{
		Id:              uuid.New(),
		PatientId:       user.Id,
		DoctorId:        doctor.Id,
		AppointmentDate: req.AppointmentDate,
		Status:          database.AppointmentScheduled,
		DiseaseType:     sql.NullString{String: req.DiseaseType, Valid: req.DiseaseType != ""},
		Symptoms:        sql.NullString{String: req.Symptoms, Valid: req.Symptoms != ""},
		MeetLink:        sql.NullString{String: link.URL, Valid: true},
		MeetingId:       sql.NullString{String: link.MeetingId, Valid: true},
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.db.WithContext(r.Context()).Create(&appointment).Error; err != nil {
		slog.Error("error creating appointment", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to book appointment")
	}

	if err := s.publisher.PublishAppointmentBooked(r.Context(), events.AppointmentBookedPayload{
		AppointmentId: appointment.Id,
		PatientId:     user.Id,
		DoctorId:      doctor.Id,
		PatientName:   user.FullName,
		DoctorName:    doctor.FullName,
		Date:          req.AppointmentDate,
		MeetLink:      link.URL,
	}); err != nil {
		slog.Error("error publishing appointment booked event", "appointment_id", appointment.Id, "error", err)
	}

	return api.BookAppointmentResponse{
		Message:         "Appointment booked successfully",
		AppointmentId:   appointment.Id,
		MeetLink:        link.URL,
		DoctorName:      doctor.FullName,
		AppointmentDate: req.AppointmentDate,
	}, nil
}

func (s *AppointmentService) MyAppointments(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	var appointments []database.Appointment

	switch user.UserType {
	case database.RolePatient:
		err := s.db.WithContext(r.Context()).
			Preload("Doctor").
			Where("patient_id = ?", user.Id).
			Order("appointment_date DESC").
			Find(&appointments).Error
		if err != nil {
			slog.Error("error listing appointments", "user_id", user.Id, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to list appointments")
		}
		return api.PatientAppointmentsResponse{Appointments: convertPatientAppointments(appointments)}, nil

	case database.RoleDoctor:
		err := s.db.WithContext(r.Context()).
			Preload("Patient").
			Where("doctor_id = ?", user.Id).
			Order("appointment_date DESC").
			Find(&appointments).Error
		if err != nil {
			slog.Error("error listing appointments", "user_id", user.Id, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to list appointments")
		}
		return api.DoctorAppointmentsResponse{Appointments: convertDoctorAppointments(appointments)}, nil

	default:
		return nil, CodedErrorf(http.StatusForbidden, "unknown user type '%s'", user.UserType)
	}
}

func (s *AppointmentService) UpdateStatus(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	appointmentId, err := URLParamUUID(r, "appointment_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UpdateAppointmentStatusRequest](r)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case database.AppointmentScheduled, database.AppointmentCompleted, database.AppointmentCancelled:
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "Invalid status")
	}

	var appointment database.Appointment
	err = s.db.WithContext(r.Context()).
		Preload("Patient").
		Preload("Doctor").
		First(&appointment, "id = ?", appointmentId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Appointment not found")
		}
		slog.Error("error looking up appointment", "appointment_id", appointmentId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update appointment")
	}

	if (user.UserType == database.RolePatient && appointment.PatientId != user.Id) ||
		(user.UserType == database.RoleDoctor && appointment.DoctorId != user.Id) {
		return nil, CodedErrorf(http.StatusForbidden, "Not authorized")
	}

	err = s.db.WithContext(r.Context()).Transaction(func(txn *gorm.DB) error {
		if err := database.UpdateAppointmentStatus(r.Context(), txn, appointment.Id, req.Status); err != nil {
			return err
		}
		if req.Notes != nil {
			return txn.Model(&database.Appointment{Id: appointment.Id}).
				Update("notes", sql.NullString{String: *req.Notes, Valid: *req.Notes != ""}).Error
		}
		return nil
	})
	if err != nil {
		slog.Error("error updating appointment", "appointment_id", appointment.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update appointment")
	}

	if req.Status == database.AppointmentCancelled && appointment.Status != database.AppointmentCancelled {
		payload := events.AppointmentCancelledPayload{
			AppointmentId: appointment.Id,
			PatientId:     appointment.PatientId,
			DoctorId:      appointment.DoctorId,
			Date:          appointment.AppointmentDate,
		}
		if appointment.Patient != nil {
			payload.PatientName = appointment.Patient.FullName
		}
		if appointment.Doctor != nil {
			payload.DoctorName = appointment.Doctor.FullName
		}
		if err := s.publisher.PublishAppointmentCancelled(r.Context(), payload); err != nil {
			slog.Error("error publishing appointment cancelled event", "appointment_id", appointment.Id, "error", err)
		}
	}

	return api.MessageResponse{Message: "Appointment status updated successfully"}, nil
}
