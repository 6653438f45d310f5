package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a state transition on the Store
type EventType string

const (
	EventMessage   EventType = "message"   // a message was appended
	EventStatus    EventType = "status"    // a user message changed status
	EventBusy      EventType = "busy"      // the busy flag flipped
	EventSession   EventType = "session"   // an upload replaced the session
	EventSelection EventType = "selection" // the file selection changed
)

// Event describes a transition. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	Message   Message
	Busy      bool
	Session   Session
	Selection []string
}

// Store holds all client-side state for one docchat instance.
// It is mutated only through its transition methods.
type Store struct {
	mu          sync.Mutex
	messages    []Message
	session     Session
	selection   []string
	draft       string
	inflight    map[string]string // guard -> request token
	subscribers []func(Event)
	now         func() time.Time

	// busyMu orders busy deliveries; published is the last value delivered
	busyMu    sync.Mutex
	published bool
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		messages: []Message{},
		inflight: make(map[string]string),
		now:      time.Now,
	}
}

// Subscribe registers fn to receive every event after it is applied.
// Callbacks run synchronously outside the store lock.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Messages returns a copy of the conversation log in display order
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Session returns the current session
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Selection returns the selected file paths
func (s *Store) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selection))
	copy(out, s.selection)
	return out
}

// Draft returns the pending question text
func (s *Store) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Busy reports whether any request is outstanding
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight) > 0
}

func (s *Store) setDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Store) appendMessage(role Role, text string, status Status) Message {
	msg := Message{
		ID:     uuid.New().String(),
		Role:   role,
		Text:   text,
		Status: status,
	}

	s.mu.Lock()
	msg.CreatedAt = s.now()
	s.messages = append(s.messages, msg)
	subs := s.subscribers
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventMessage, Message: msg})
	return msg
}

// appendUser adds an optimistic user question
func (s *Store) appendUser(text string) Message {
	return s.appendMessage(RoleUser, text, StatusPending)
}

func (s *Store) appendBot(text string) Message {
	return s.appendMessage(RoleBot, text, StatusDelivered)
}

// setStatus moves a pending message to a final status
func (s *Store) setStatus(id string, status Status) {
	s.mu.Lock()
	var updated *Message
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = status
			updated = &s.messages[i]
			break
		}
	}
	if updated == nil {
		s.mu.Unlock()
		return
	}
	msg := *updated
	subs := s.subscribers
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventStatus, Message: msg})
}

func (s *Store) setSession(session Session) {
	s.mu.Lock()
	s.session = session
	subs := s.subscribers
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventSession, Session: session})
}

func (s *Store) setSelection(paths []string) {
	sel := make([]string, len(paths))
	copy(sel, paths)

	s.mu.Lock()
	s.selection = sel
	subs := s.subscribers
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventSelection, Selection: sel})
}

// begin claims guard for a new request. It fails with ErrBusy when the
// guard already has a request outstanding.
func (s *Store) begin(guard string) (string, error) {
	s.mu.Lock()
	if _, ok := s.inflight[guard]; ok {
		s.mu.Unlock()
		return "", ErrBusy
	}
	token := uuid.New().String()
	s.inflight[guard] = token
	s.mu.Unlock()

	s.publishBusy()
	return token, nil
}

// settle releases guard if token still owns it
func (s *Store) settle(guard, token string) {
	s.mu.Lock()
	if s.inflight[guard] != token {
		s.mu.Unlock()
		return
	}
	delete(s.inflight, guard)
	s.mu.Unlock()

	s.publishBusy()
}

// publishBusy delivers the busy flag when it differs from the last value
// delivered. The flag is read under busyMu, so concurrent begin and settle
// calls always leave subscribers on the current value.
func (s *Store) publishBusy() {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()

	s.mu.Lock()
	busy := len(s.inflight) > 0
	subs := s.subscribers
	s.mu.Unlock()

	if busy == s.published {
		return
	}
	s.published = busy
	s.emit(subs, Event{Type: EventBusy, Busy: busy})
}

func (s *Store) emit(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
