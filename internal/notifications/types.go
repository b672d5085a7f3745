package notifications

import (
	"context"
	"time"
)

// EventType identifies why the operator is being notified.
type EventType string

const (
	// TypeSuggestionReady means a semi-auto answer is waiting for review.
	TypeSuggestionReady EventType = "suggestion_ready"
	// TypeReplyFailed means an automatic reply could not be posted.
	TypeReplyFailed EventType = "reply_failed"
)

// Event is what the orchestrator reports.
type Event struct {
	Type            EventType
	PostID          string
	BoardID         string
	Title           string
	SuggestedAnswer string
	LogID           int64
}

// Sink receives events. Callers log a failed Send and carry on.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Notification is a stored event.
type Notification struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	PostID      string    `json:"post_id"`
	BoardID     string    `json:"board_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	AnswerLogID *int64    `json:"answer_log_id,omitempty"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}
