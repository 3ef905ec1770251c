package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"medix-backend/internal/auth"
	"medix-backend/internal/database"
	"medix-backend/pkg/api"
)

type AuthService struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
}

func NewAuthService(db *gorm.DB, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{db: db, tokens: tokens}
}

func (s *AuthService) AddRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup/patient", RestHandler(s.SignupPatient))
		r.Post("/signup/doctor", RestHandler(s.SignupDoctor))
		r.Post("/login", RestHandler(s.Login))

		r.Group(func(r chi.Router) {
			r.Use(s.tokens.Middleware(s.db))
			r.Get("/me", RestHandler(s.Me))
			r.Put("/profile", RestHandler(s.UpdateProfile))
		})
	})
}

func (s *AuthService) SignupPatient(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SignupPatientRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "email, password, and full name are required")
	}

	user := database.User{
		Id:        uuid.New(),
		Email:     req.Email,
		FullName:  req.FullName,
		UserType:  database.RolePatient,
		City:      req.City,
		Phone:     sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		Age:       sql.NullInt64{Int64: req.Age, Valid: req.Age > 0},
		Gender:    sql.NullString{String: req.Gender, Valid: req.Gender != ""},
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}

	return s.signup(r.Context(), &user, req.Password, "Patient registered successfully")
}

func (s *AuthService) SignupDoctor(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SignupDoctorRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "email, password, and full name are required")
	}
	if req.Specialty == "" || req.LicenseNumber == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "specialty and license number are required")
	}

	user := database.User{
		Id:              uuid.New(),
		Email:           req.Email,
		FullName:        req.FullName,
		UserType:        database.RoleDoctor,
		City:            req.City,
		Phone:           sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		Specialty:       sql.NullString{String: req.Specialty, Valid: true},
		LicenseNumber:   sql.NullString{String: req.LicenseNumber, Valid: true},
		ExperienceYears: sql.NullInt64{Int64: req.ExperienceYears, Valid: true},
		CreatedAt:       time.Now().UTC(),
		IsActive:        true,
	}

	return s.signup(r.Context(), &user, req.Password, "Doctor registered successfully")
}

func (s *AuthService) signup(ctx context.Context, user *database.User, password, message string) (any, error) {
	err := s.db.WithContext(ctx).Where("email = ?", user.Email).First(&database.User{}).Error
	if err == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "Email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("error checking for existing user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create account")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create account")
	}
	user.HashedPassword = hash

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("error creating user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create account")
	}

	token, err := s.tokens.CreateAccessToken(user.Email)
	if err != nil {
		slog.Error("error creating access token", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create account")
	}

	slog.Info("registered new user", "user_id", user.Id, "user_type", user.UserType)

	return api.AuthResponse{
		Message:     message,
		AccessToken: token,
		TokenType:   "bearer",
		User:        convertUser(*user),
	}, nil
}

func (s *AuthService) Login(r *http.Request) (any, error) {
	req, err := ParseRequest[api.LoginRequest](r)
	if err != nil {
		return nil, err
	}

	var user database.User
	if err := s.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusUnauthorized, "Incorrect email or password")
		}
		slog.Error("error looking up user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "login failed")
	}

	if !auth.VerifyPassword(req.Password, user.HashedPassword) {
		return nil, CodedErrorf(http.StatusUnauthorized, "Incorrect email or password")
	}

	if !user.IsActive {
		return nil, CodedErrorf(http.StatusBadRequest, "Account is deactivated")
	}

	token, err := s.tokens.CreateAccessToken(user.Email)
	if err != nil {
		slog.Error("error creating access token", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "login failed")
	}

	return api.AuthResponse{
		Message:     "Login successful",
		AccessToken: token,
		TokenType:   "bearer",
		User:        convertUser(user),
	}, nil
}

func (s *AuthService) Me(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}
	return convertUser(*user), nil
}

// UpdateProfile applies the editable profile fields. Which fields are
// editable depends on the caller's role, everything else in the payload is
// ignored.
func (s *AuthService) UpdateProfile(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	req, err := ParseRequest[api.UpdateProfileRequest](r)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil && *req.FullName != "" {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = sql.NullString{String: *req.Phone, Valid: *req.Phone != ""}
	}
	if req.City != nil && *req.City != "" {
		user.City = *req.City
	}

	switch user.UserType {
	case database.RolePatient:
		if req.Age != nil {
			user.Age = sql.NullInt64{Int64: *req.Age, Valid: *req.Age > 0}
		}
		if req.Gender != nil {
			user.Gender = sql.NullString{String: *req.Gender, Valid: *req.Gender != ""}
		}
	case database.RoleDoctor:
		if req.Specialty != nil {
			user.Specialty = sql.NullString{String: *req.Specialty, Valid: *req.Specialty != ""}
		}
		if req.ExperienceYears != nil {
			user.ExperienceYears = sql.NullInt64{Int64: *req.ExperienceYears, Valid: true}
		}
	}

	if err := s.db.WithContext(r.Context()).Save(user).Error; err != nil {
		slog.Error("error updating profile", "user_id", user.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update profile")
	}

	return convertUser(*user), nil
}
