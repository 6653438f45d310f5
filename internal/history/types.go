package history

import (
	"time"

	"docchat/internal/chat"
)

// History represents all saved transcripts
type History struct {
	Transcripts []Transcript `json:"transcripts"`
}

// Transcript is the conversation of a single docchat run
type Transcript struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Session   chat.Session   `json:"session"`
	Uploads   []Upload       `json:"uploads,omitempty"`
	Messages  []chat.Message `json:"messages"`
}

// Upload records a successful file upload
type Upload struct {
	SessionID string    `json:"session_id"`
	FileURI   string    `json:"file_uri"`
	At        time.Time `json:"at"`
}
