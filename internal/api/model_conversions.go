package api

import (
	"database/sql"

	"medix-backend/internal/database"
	"medix-backend/internal/vision"
	"medix-backend/pkg/api"
)

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func convertUser(u database.User) api.User {
	return api.User{
		Id:              u.Id,
		Email:           u.Email,
		FullName:        u.FullName,
		UserType:        u.UserType,
		City:            u.City,
		Phone:           nullString(u.Phone),
		Specialty:       nullString(u.Specialty),
		ExperienceYears: nullInt(u.ExperienceYears),
		Age:             nullInt(u.Age),
		Gender:          nullString(u.Gender),
		CreatedAt:       u.CreatedAt,
	}
}

func convertDoctor(u database.User) api.Doctor {
	return api.Doctor{
		Id:              u.Id,
		Name:            u.FullName,
		Specialty:       nullString(u.Specialty),
		City:            u.City,
		ExperienceYears: nullInt(u.ExperienceYears),
		Phone:           nullString(u.Phone),
	}
}

func convertDoctors(us []database.User) []api.Doctor {
	doctors := make([]api.Doctor, 0, len(us))
	for _, u := range us {
		doctors = append(doctors, convertDoctor(u))
	}
	return doctors
}

func convertPatientAppointment(a database.Appointment) api.PatientAppointment {
	view := api.PatientAppointment{
		Id:              a.Id,
		DoctorName:      "Unknown",
		AppointmentDate: a.AppointmentDate,
		Status:          a.Status,
		DiseaseType:     nullString(a.DiseaseType),
		MeetLink:        nullString(a.MeetLink),
		Symptoms:        nullString(a.Symptoms),
	}
	if a.Doctor != nil {
		view.DoctorName = a.Doctor.FullName
		view.DoctorSpecialty = nullString(a.Doctor.Specialty)
	}
	return view
}

func convertPatientAppointments(as []database.Appointment) []api.PatientAppointment {
	appointments := make([]api.PatientAppointment, 0, len(as))
	for _, a := range as {
		appointments = append(appointments, convertPatientAppointment(a))
	}
	return appointments
}

func convertDoctorAppointment(a database.Appointment) api.DoctorAppointment {
	view := api.DoctorAppointment{
		Id:              a.Id,
		PatientName:     "Unknown",
		AppointmentDate: a.AppointmentDate,
		Status:          a.Status,
		DiseaseType:     nullString(a.DiseaseType),
		MeetLink:        nullString(a.MeetLink),
		Symptoms:        nullString(a.Symptoms),
	}
	if a.Patient != nil {
		view.PatientName = a.Patient.FullName
		view.PatientAge = nullInt(a.Patient.Age)
	}
	return view
}

func convertDoctorAppointments(as []database.Appointment) []api.DoctorAppointment {
	appointments := make([]api.DoctorAppointment, 0, len(as))
	for _, a := range as {
		appointments = append(appointments, convertDoctorAppointment(a))
	}
	return appointments
}

func convertPrediction(p vision.Prediction) api.Prediction {
	return api.Prediction{Disease: p.Disease, Confidence: p.Confidence}
}

func convertPredictions(ps []vision.Prediction) []api.Prediction {
	predictions := make([]api.Prediction, 0, len(ps))
	for _, p := range ps {
		predictions = append(predictions, convertPrediction(p))
	}
	return predictions
}

func convertModelInfo(info map[string]vision.ModelInfo) map[string]api.ModelInfo {
	models := make(map[string]api.ModelInfo, len(info))
	for id, m := range info {
		models[id] = api.ModelInfo{
			Loaded:       m.Loaded,
			Architecture: m.Architecture,
			NumClasses:   m.NumClasses,
			Classes:      m.Classes,
			Description:  m.Description,
			SourceFile:   m.SourceFile,
		}
	}
	return models
}

func convertNotification(n database.Notification) api.Notification {
	return api.Notification{
		Id:        n.Id,
		Kind:      n.Kind,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func convertNotifications(ns []database.Notification) []api.Notification {
	notifications := make([]api.Notification, 0, len(ns))
	for _, n := range ns {
		notifications = append(notifications, convertNotification(n))
	}
	return notifications
}
