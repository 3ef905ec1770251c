package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatSession accumulates the turns of one consultation so follow-up
// messages can be answered with the full conversation in context.
type ChatSession struct {
	mu    sync.Mutex
	turns []Turn
}

func (session *ChatSession) append(turns ...Turn) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.turns = append(session.turns, turns...)
}

func (session *ChatSession) transcript() string {
	session.mu.Lock()
	defer session.mu.Unlock()

	var b strings.Builder
	for _, turn := range session.turns {
		role := "MediX AI"
		if turn.Role == "user" {
			role = "Patient"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}
	return b.String()
}

type sessionEntry struct {
	session      *ChatSession
	startedAt    time.Time
	lastAccessed time.Time
}

// SessionCache keeps recently active chat sessions in memory. At capacity
// the least recently used session is dropped; a dropped session is rebuilt
// from the stored chat history on its next message.
type SessionCache struct {
	lock     sync.Mutex
	sessions map[string]*sessionEntry
	maxSize  int
}

func NewSessionCache(maxSize int) *SessionCache {
	return &SessionCache{
		sessions: make(map[string]*sessionEntry, maxSize),
		maxSize:  maxSize,
	}
}

// Get returns the cached session, or nil if the session is cold.
func (cache *SessionCache) Get(sessionID string) *ChatSession {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	entry, exists := cache.sessions[sessionID]
	if !exists {
		return nil
	}

	entry.lastAccessed = time.Now()
	return entry.session
}

func (cache *SessionCache) Put(sessionID string, session *ChatSession) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	if _, exists := cache.sessions[sessionID]; !exists && len(cache.sessions) >= cache.maxSize {
		oldestSessionID := ""
		var oldestTime time.Time
		for id, entry := range cache.sessions {
			if oldestSessionID == "" || entry.lastAccessed.Before(oldestTime) {
				oldestSessionID = id
				oldestTime = entry.lastAccessed
			}
		}
		delete(cache.sessions, oldestSessionID)
	}

	now := time.Now()
	cache.sessions[sessionID] = &sessionEntry{
		session:      session,
		startedAt:    now,
		lastAccessed: now,
	}
}

// Cleanup drops sessions that started more than maxAge ago and returns the
// number removed.
func (cache *SessionCache) Cleanup(maxAge time.Duration) int {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	cutoff := time.Now().Add(-maxAge)

	removed := 0
	for id, entry := range cache.sessions {
		if entry.startedAt.Before(cutoff) {
			delete(cache.sessions, id)
			removed++
		}
	}

	return removed
}

func (cache *SessionCache) Len() int {
	cache.lock.Lock()
	defer cache.lock.Unlock()
	return len(cache.sessions)
}
