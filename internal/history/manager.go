package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/chat"
)

// Manager persists conversation transcripts to a JSON file
type Manager struct {
	filePath       string
	mu             sync.RWMutex
	history        *History
	current        *Transcript
	maxTranscripts int
}

// NewManager creates a new history manager
func NewManager(filePath string, maxTranscripts int) *Manager {
	return &Manager{
		filePath:       filePath,
		history:        &History{Transcripts: []Transcript{}},
		maxTranscripts: maxTranscripts,
	}
}

// Load reads saved transcripts from disk and starts a new one
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		m.history = &History{Transcripts: []Transcript{}}
		m.startNewTranscript()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var loaded History
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Transcripts == nil {
		// unreadable or empty document: keep a copy and start fresh
		if err := os.Rename(m.filePath, m.filePath+".backup"); err != nil {
			return fmt.Errorf("failed to back up history file: %w", err)
		}
		loaded = History{Transcripts: []Transcript{}}
	}
	m.history = &loaded

	m.startNewTranscript()
	return nil
}

// startNewTranscript must be called with lock held
func (m *Manager) startNewTranscript() {
	now := time.Now()
	m.current = &Transcript{
		ID:        uuid.New().String(),
		StartedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	}
	m.history.Transcripts = append(m.history.Transcripts, *m.current)
}

// Record applies a store event to the current transcript and saves it.
// It has the signature expected by chat.Store.Subscribe.
func (m *Manager) Record(ev chat.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.startNewTranscript()
	}

	switch ev.Type {
	case chat.EventMessage:
		m.current.Messages = append(m.current.Messages, ev.Message)
	case chat.EventStatus:
		for i := range m.current.Messages {
			if m.current.Messages[i].ID == ev.Message.ID {
				m.current.Messages[i].Status = ev.Message.Status
				break
			}
		}
	case chat.EventSession:
		m.current.Session = ev.Session
		m.current.Uploads = append(m.current.Uploads, Upload{
			SessionID: ev.Session.SessionID,
			FileURI:   ev.Session.FileURI,
			At:        time.Now(),
		})
	default:
		return nil
	}
	m.current.UpdatedAt = time.Now()

	for i := range m.history.Transcripts {
		if m.history.Transcripts[i].ID == m.current.ID {
			m.history.Transcripts[i] = *m.current
			break
		}
	}

	return m.saveUnlocked()
}

// Transcripts returns copies of all transcripts, oldest first
func (m *Manager) Transcripts() []Transcript {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transcript, len(m.history.Transcripts))
	for i, t := range m.history.Transcripts {
		t.Messages = append([]chat.Message(nil), t.Messages...)
		t.Uploads = append([]Upload(nil), t.Uploads...)
		out[i] = t
	}
	return out
}

// Recent returns a copy of the last limit messages of the current
// transcript. A limit of zero or less returns them all.
func (m *Manager) Recent(limit int) []chat.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	msgs := m.current.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]chat.Message(nil), msgs...)
}

// saveUnlocked must be called with lock held
func (m *Manager) saveUnlocked() error {
	if len(m.history.Transcripts) > m.maxTranscripts {
		m.history.Transcripts = m.history.Transcripts[len(m.history.Transcripts)-m.maxTranscripts:]
	}

	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tempPath := m.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// GetCurrentTranscript returns a copy of the current transcript
func (m *Manager) GetCurrentTranscript() *Transcript {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	t := *m.current
	t.Messages = append([]chat.Message(nil), m.current.Messages...)
	return &t
}
