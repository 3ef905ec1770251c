package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"medix-backend/internal/assistant"
	"medix-backend/internal/auth"
	"medix-backend/internal/core/utils"
	"medix-backend/internal/database"
	"medix-backend/pkg/api"
)

const (
	// historyWindow is how many stored messages are replayed into the
	// assistant when a session is no longer cached in memory.
	historyWindow = 10

	maxConcurrentSessions = 1000
)

type ChatService struct {
	db        *gorm.DB
	tokens    *auth.TokenIssuer
	assistant *assistant.MedicalAssistant

	// locks serializes messages per session so concurrent requests cannot
	// interleave their history writes.
	locks utils.MutexMap
}

func NewChatService(db *gorm.DB, tokens *auth.TokenIssuer, medical *assistant.MedicalAssistant) *ChatService {
	return &ChatService{
		db:        db,
		tokens:    tokens,
		assistant: medical,
		locks:     utils.NewMutexMap(maxConcurrentSessions),
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Use(s.tokens.Middleware(s.db))
		r.Post("/start", RestHandler(s.StartChat))
		r.Post("/continue", RestHandler(s.ContinueChat))
		r.Get("/history/{session_id}", RestHandler(s.GetChatHistory))
		r.Get("/sessions", RestHandler(s.GetChatSessions))
	})
}

func userContext(user *database.User) assistant.UserContext {
	userCtx := assistant.UserContext{City: user.City}
	if user.Age.Valid {
		userCtx.Age = strconv.FormatInt(user.Age.Int64, 10)
	}
	if user.Gender.Valid {
		userCtx.Gender = user.Gender.String
	}
	return userCtx
}

func (s *ChatService) StartChat(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Message == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message is required")
	}

	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if err := s.locks.Lock(sessionID); err != nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "too many active chat sessions")
	}
	defer s.locks.Unlock(sessionID) //nolint:errcheck

	reply := s.assistant.StartChat(r.Context(), sessionID, req.Message, userContext(user))

	if err := s.saveExchange(r.Context(), user.Id, sessionID, req, reply); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "Error starting chat session")
	}

	return api.ChatResponse{Response: reply, SessionId: sessionID}, nil
}

func (s *ChatService) ContinueChat(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}
	if req.SessionId == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Session ID is required for continuing chat")
	}

	if err := s.locks.Lock(req.SessionId); err != nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "too many active chat sessions")
	}
	defer s.locks.Unlock(req.SessionId) //nolint:errcheck

	history, err := database.GetSessionHistory(r.Context(), s.db, user.Id, req.SessionId, historyWindow)
	if err != nil {
		slog.Error("error loading chat history", "session_id", req.SessionId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "Error continuing chat session")
	}

	turns := make([]assistant.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, assistant.Turn{Role: msg.MessageType, Content: msg.MessageContent})
	}

	reply := s.assistant.ContinueChat(r.Context(), req.SessionId, req.Message, turns)

	if err := s.saveExchange(r.Context(), user.Id, req.SessionId, req, reply); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "Error continuing chat session")
	}

	return api.ChatResponse{Response: reply, SessionId: req.SessionId}, nil
}

func (s *ChatService) saveExchange(ctx context.Context, userId uuid.UUID, sessionID string, req api.ChatRequest, reply string) error {
	contextType := sql.NullString{String: req.ContextType, Valid: req.ContextType != ""}

	userMsg := database.ChatMessage{
		UserId:         userId,
		SessionID:      sessionID,
		MessageType:    "user",
		MessageContent: req.Message,
		ContextType:    contextType,
	}
	if err := database.SaveChatMessage(ctx, s.db, &userMsg); err != nil {
		slog.Error("error saving chat message", "session_id", sessionID, "error", err)
		return err
	}

	assistantMsg := database.ChatMessage{
		UserId:         userId,
		SessionID:      sessionID,
		MessageType:    "assistant",
		MessageContent: reply,
		ContextType:    contextType,
	}
	if err := database.SaveChatMessage(ctx, s.db, &assistantMsg); err != nil {
		slog.Error("error saving chat message", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

func (s *ChatService) GetChatHistory(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing {session_id} url parameter")
	}

	messages, err := database.GetSessionHistory(r.Context(), s.db, user.Id, sessionID, 0)
	if err != nil {
		slog.Error("error loading chat history", "session_id", sessionID, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load chat history")
	}

	items := make([]api.ChatHistoryItem, 0, len(messages))
	for _, msg := range messages {
		items = append(items, api.ChatHistoryItem{
			Type:      msg.MessageType,
			Content:   msg.MessageContent,
			Timestamp: msg.Timestamp,
		})
	}

	return api.ChatHistoryResponse{SessionId: sessionID, Messages: items}, nil
}

// GetChatSessions lists the caller's sessions, newest first, each with its
// most recent message.
func (s *ChatService) GetChatSessions(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	var messages []database.ChatMessage
	err := s.db.WithContext(r.Context()).
		Where("user_id = ?", user.Id).
		Order("timestamp DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		slog.Error("error listing chat sessions", "user_id", user.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list chat sessions")
	}

	seen := make(map[string]bool)
	sessions := make([]api.ChatSessionSummary, 0)
	for _, msg := range messages {
		if seen[msg.SessionID] {
			continue
		}
		seen[msg.SessionID] = true
		sessions = append(sessions, api.ChatSessionSummary{
			SessionId:    msg.SessionID,
			LastMessage:  msg.MessageContent,
			LastActivity: msg.Timestamp,
		})
	}

	return api.ChatSessionsResponse{Sessions: sessions}, nil
}
