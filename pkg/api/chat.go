package api

import "time"

type ChatRequest struct {
	Message     string `json:"message"`
	SessionId   string `json:"session_id"`
	ContextType string `json:"context_type"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	SessionId string `json:"session_id"`
}

type ChatHistoryItem struct {
	Type      string    `json:"type"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatHistoryResponse struct {
	SessionId string            `json:"session_id"`
	Messages  []ChatHistoryItem `json:"messages"`
}

type ChatSessionSummary struct {
	SessionId    string    `json:"session_id"`
	LastMessage  string    `json:"last_message"`
	LastActivity time.Time `json:"last_activity"`
}

type ChatSessionsResponse struct {
	Sessions []ChatSessionSummary `json:"sessions"`
}
