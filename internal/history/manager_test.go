package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chat"
)

func newLoadedManager(t *testing.T, path string, max int) *Manager {
	t.Helper()
	m := NewManager(path, max)
	require.NoError(t, m.Load())
	return m
}

func TestRecordPersistsTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	m := newLoadedManager(t, path, 5)

	user := chat.Message{ID: "m1", Role: chat.RoleUser, Text: "hi", Status: chat.StatusPending}
	require.NoError(t, m.Record(chat.Event{Type: chat.EventMessage, Message: user}))

	user.Status = chat.StatusFailed
	require.NoError(t, m.Record(chat.Event{Type: chat.EventStatus, Message: user}))
	require.NoError(t, m.Record(chat.Event{Type: chat.EventSession, Session: chat.Session{SessionID: "s1", FileURI: "u1"}}))

	// events without transcript content are ignored
	require.NoError(t, m.Record(chat.Event{Type: chat.EventBusy, Busy: true}))

	current := m.GetCurrentTranscript()
	require.NotNil(t, current)
	require.Len(t, current.Messages, 1)
	assert.Equal(t, chat.StatusFailed, current.Messages[0].Status)
	assert.Equal(t, "s1", current.Session.SessionID)
	require.Len(t, current.Uploads, 1)

	reloaded := newLoadedManager(t, path, 5)
	transcripts := reloaded.Transcripts()
	require.Len(t, transcripts, 2)
	assert.Equal(t, current.ID, transcripts[0].ID)
	assert.Equal(t, "hi", transcripts[0].Messages[0].Text)
	assert.Empty(t, transcripts[1].Messages)
}

func TestPrunesOldTranscripts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	for i := 0; i < 4; i++ {
		m := newLoadedManager(t, path, 2)
		msg := chat.Message{ID: "m", Role: chat.RoleBot, Text: "x", Status: chat.StatusDelivered}
		require.NoError(t, m.Record(chat.Event{Type: chat.EventMessage, Message: msg}))
	}

	// loading starts a third transcript; the next write prunes it back
	m := newLoadedManager(t, path, 2)
	assert.Len(t, m.Transcripts(), 3)
	require.NoError(t, m.Record(chat.Event{Type: chat.EventMessage, Message: chat.Message{ID: "n", Role: chat.RoleUser, Text: "y"}}))
	assert.Len(t, m.Transcripts(), 2)
}

func TestCorruptedFileIsBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	m := newLoadedManager(t, path, 5)
	assert.Len(t, m.Transcripts(), 1)

	_, err := os.Stat(path + ".backup")
	assert.NoError(t, err)
}

func TestEmptyDocumentIsBackedUp(t *testing.T) {
	for _, doc := range []string{"null", "{}", `{"transcripts": null}`} {
		t.Run(doc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

			m := newLoadedManager(t, path, 5)
			assert.Len(t, m.Transcripts(), 1)
			require.NoError(t, m.Record(chat.Event{Type: chat.EventMessage, Message: chat.Message{ID: "m", Role: chat.RoleUser, Text: "hi"}}))

			backup, err := os.ReadFile(path + ".backup")
			require.NoError(t, err)
			assert.Equal(t, doc, string(backup))
		})
	}
}

func TestRecent(t *testing.T) {
	m := newLoadedManager(t, filepath.Join(t.TempDir(), "history.json"), 5)
	assert.Empty(t, m.Recent(2))

	for _, text := range []string{"a", "b", "c"} {
		msg := chat.Message{ID: text, Role: chat.RoleUser, Text: text, Status: chat.StatusPending}
		require.NoError(t, m.Record(chat.Event{Type: chat.EventMessage, Message: msg}))
	}

	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Text)
	assert.Equal(t, "c", recent[1].Text)
	assert.Len(t, m.Recent(0), 3)

	// the result is a copy
	recent[1].Status = chat.StatusFailed
	assert.Equal(t, chat.StatusPending, m.Recent(1)[0].Status)
}
