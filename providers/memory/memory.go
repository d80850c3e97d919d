package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimestampLayout renders UTC timestamps with millisecond precision and a
// fixed width, e.g. 2024-05-01T10:00:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp formats t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AttachmentType is the kind of file attached to a user turn.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
)

// Attachment is a file the user sent along with a message. Data is base64
// without a data-URL prefix.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	Data     string         `json:"data"`
	Name     string         `json:"name"`
	MimeType string         `json:"mimeType"`
	Size     int64          `json:"size"`
}

// Message is one turn of a conversation. Messages are never modified once
// appended to a Session.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewUserMessage builds a user turn stamped with now. Attachments are kept
// only when non-empty.
func NewUserMessage(content string, attachments []Attachment, now time.Time) Message {
	msg := Message{
		ID:        fmt.Sprintf("user-%d", now.UnixMilli()),
		Role:      RoleUser,
		Content:   content,
		Timestamp: FormatTimestamp(now),
	}
	if len(attachments) > 0 {
		msg.Attachments = append([]Attachment(nil), attachments...)
	}
	return msg
}

// NewAssistantMessage builds an assistant turn stamped with now.
func NewAssistantMessage(content string, now time.Time) Message {
	return Message{
		ID:        fmt.Sprintf("assistant-%d", now.UnixMilli()),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: FormatTimestamp(now),
	}
}

// Session is the conversation attached to one container. The transcript is
// append-only and guarded by the session's own lock.
type Session struct {
	ID          string
	ContainerID string
	CreatedAt   time.Time

	mu        sync.RWMutex
	messages  []Message
	updatedAt time.Time
	turns     int
}

// NewSession returns an empty session created at now.
func NewSession(id, containerID string, now time.Time) *Session {
	return &Session{
		ID:          id,
		ContainerID: containerID,
		CreatedAt:   now,
		updatedAt:   now,
		messages:    []Message{},
	}
}

// Append adds msg at the end of the transcript.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Touch sets UpdatedAt to t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.updatedAt = t
	s.mu.Unlock()
}

// BeginTurn marks a turn as running on the session. Stores do not evict a
// session while a turn is running. Every call must be paired with EndTurn.
func (s *Session) BeginTurn() {
	s.mu.Lock()
	s.turns++
	s.mu.Unlock()
}

// EndTurn marks one running turn as finished.
func (s *Session) EndTurn() {
	s.mu.Lock()
	if s.turns > 0 {
		s.turns--
	}
	s.mu.Unlock()
}

// InTurn reports whether a turn is running.
func (s *Session) InTurn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns > 0
}

// UpdatedAt returns the time of the last completed assistant turn, or the
// creation time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the transcript.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SessionSnapshot is a point-in-time copy of a Session, suitable for JSON.
type SessionSnapshot struct {
	ID          string    `json:"id"`
	ContainerID string    `json:"containerId"`
	Messages    []Message `json:"messages"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return SessionSnapshot{
		ID:          s.ID,
		ContainerID: s.ContainerID,
		Messages:    messages,
		CreatedAt:   FormatTimestamp(s.CreatedAt),
		UpdatedAt:   FormatTimestamp(s.updatedAt),
	}
}

// Store is the session registry. Implementations keep at most one live
// session per container and are safe for concurrent use.
type Store interface {
	// Create registers a fresh session for containerID, replacing any
	// existing one.
	Create(ctx context.Context, containerID string) *Session

	// Get looks a session up by its id.
	Get(ctx context.Context, sessionID string) (*Session, bool)

	// Lookup returns the container's session without creating one.
	Lookup(ctx context.Context, containerID string) (*Session, bool)

	// GetOrCreate returns the container's session, creating it if absent.
	// Concurrent calls for the same container return the same session.
	GetOrCreate(ctx context.Context, containerID string) *Session

	// Delete drops the container's session and reports whether one existed.
	Delete(ctx context.Context, containerID string) bool

	// Len returns the number of live sessions.
	Len(ctx context.Context) int
}
