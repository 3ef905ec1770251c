package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"medix-backend/internal/auth"
	"medix-backend/internal/database"
	"medix-backend/pkg/api"
)

const notificationsLimit = 50

type NotificationService struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
}

func NewNotificationService(db *gorm.DB, tokens *auth.TokenIssuer) *NotificationService {
	return &NotificationService{db: db, tokens: tokens}
}

func (s *NotificationService) AddRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(s.tokens.Middleware(s.db))
		r.Get("/", RestHandler(s.GetNotifications))
		r.Put("/{notification_id}/read", RestHandler(s.MarkRead))
	})
}

// GetNotifications returns the caller's recent notifications, unread first.
func (s *NotificationService) GetNotifications(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	var notifications []database.Notification
	err := s.db.WithContext(r.Context()).
		Where("user_id = ?", user.Id).
		Order("read ASC, created_at DESC").
		Limit(notificationsLimit).
		Find(&notifications).Error
	if err != nil {
		slog.Error("error listing notifications", "user_id", user.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list notifications")
	}

	unread := 0
	for _, notification := range notifications {
		if !notification.Read {
			unread++
		}
	}

	return api.NotificationsResponse{
		Notifications: convertNotifications(notifications),
		Unread:        unread,
	}, nil
}

func (s *NotificationService) MarkRead(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	notificationId, err := URLParamUUID(r, "notification_id")
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(r.Context()).
		Model(&database.Notification{}).
		Where("id = ? AND user_id = ?", notificationId, user.Id).
		Update("read", true)
	if result.Error != nil {
		slog.Error("error marking notification read", "notification_id", notificationId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update notification")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "Notification not found")
	}

	return api.MessageResponse{Message: "Notification marked as read"}, nil
}
