// Package ledger records generated answers and the posts already taken in
// from the board, so every reply has an audit trail and no post is
// processed twice.
package ledger

import (
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// Status is the lifecycle state of an AnswerLog.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPosted   Status = "posted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPosted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusRejected
}

// AnswerLog is one generated answer and what happened to it.
type AnswerLog struct {
	ID              int64         `json:"id"`
	PostID          string        `json:"post_id"`
	BoardID         string        `json:"board_id"`
	Question        string        `json:"question"`
	SuggestedAnswer string        `json:"suggested_answer"`
	FinalAnswer     *string       `json:"final_answer"`
	Mode            settings.Mode `json:"answer_mode"`
	Status          Status        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Page is one page of answer logs.
type Page struct {
	Logs     []AnswerLog `json:"logs"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// DayCount is the number of answers created on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats summarizes the ledger.
type Stats struct {
	Total    int            `json:"total"`
	ByMode   map[string]int `json:"by_mode"`
	ByStatus map[string]int `json:"by_status"`
	LastWeek []DayCount     `json:"last_week"`
}

// MonitorStatus is the intake state of a board post.
type MonitorStatus string

const (
	MonitorNew        MonitorStatus = "new"
	MonitorProcessing MonitorStatus = "processing"
	MonitorAnswered   MonitorStatus = "answered"
	MonitorError      MonitorStatus = "error"
)

// MonitoredPost marks a board post as taken in.
type MonitoredPost struct {
	ID        int64         `json:"id"`
	PostID    string        `json:"post_id"`
	BoardID   string        `json:"board_id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Status    MonitorStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
