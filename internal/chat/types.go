package chat

import (
	"errors"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Status tracks delivery of a message to the backend
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Message is a single entry in the conversation log
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the backend-issued handle returned by a file upload
type Session struct {
	SessionID string `json:"session_id"`
	FileURI   string `json:"file_uri"`
}

// Empty reports whether no upload has populated the session yet
func (s Session) Empty() bool {
	return s.SessionID == "" && s.FileURI == ""
}

// AlertKind classifies a user-facing notice
type AlertKind string

const (
	AlertInfo    AlertKind = "info"
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
)

// Alert is a blocking notice shown to the user
type Alert struct {
	Kind    AlertKind
	Message string
}

// Alerter shows alerts to the user
type Alerter interface {
	Alert(a Alert)
}

// AlerterFunc adapts a function to the Alerter interface
type AlerterFunc func(Alert)

// Alert calls f(a)
func (f AlerterFunc) Alert(a Alert) { f(a) }

var (
	// ErrBusy is returned when a controller already has a request outstanding
	ErrBusy = errors.New("request already in progress")
	// ErrNoFiles is returned when an upload is submitted with nothing selected
	ErrNoFiles = errors.New("no files selected")
	// ErrEmptyQuestion is returned for blank questions
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrEmptyURL is returned for blank URL input
	ErrEmptyURL = errors.New("url is empty")
)
