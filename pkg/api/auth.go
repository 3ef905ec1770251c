package api

import (
	"time"

	"github.com/google/uuid"
)

type SignupPatientRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
	Age      int64  `json:"age"`
	Gender   string `json:"gender"`
}

type SignupDoctorRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	FullName        string `json:"full_name"`
	City            string `json:"city"`
	Phone           string `json:"phone"`
	Specialty       string `json:"specialty"`
	LicenseNumber   string `json:"license_number"`
	ExperienceYears int64  `json:"experience_years"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	Id       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	UserType string    `json:"user_type"`
	City     string    `json:"city"`
	Phone    *string   `json:"phone"`

	Specialty       *string `json:"specialty"`
	ExperienceYears *int64  `json:"experience_years"`
	Age             *int64  `json:"age"`
	Gender          *string `json:"gender"`

	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// UpdateProfileRequest carries only the fields a user may edit. Nil means the
// field was not sent and keeps its current value. Role restricted fields are
// ignored for the other role rather than rejected.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	City     *string `json:"city"`

	Age    *int64  `json:"age"`
	Gender *string `json:"gender"`

	Specialty       *string `json:"specialty"`
	ExperienceYears *int64  `json:"experience_years"`
}
