package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const askGuard = "ask"

// ConversationController sends questions bound to the current session and
// records both sides of the exchange.
type ConversationController struct {
	store   *Store
	backend Backend
	alerts  Alerter
	log     *slog.Logger
	timeout time.Duration
}

// NewConversationController creates a conversation controller
func NewConversationController(store *Store, client Backend, alerts Alerter, logger *slog.Logger, timeout time.Duration) *ConversationController {
	return &ConversationController{
		store:   store,
		backend: client,
		alerts:  orNopAlerter(alerts),
		log:     orDiscardLogger(logger),
		timeout: timeout,
	}
}

// SetDraft updates the question input
func (c *ConversationController) SetDraft(text string) {
	c.store.setDraft(text)
}

// Draft returns the question input
func (c *ConversationController) Draft() string {
	return c.store.Draft()
}

// Submit asks the current draft
func (c *ConversationController) Submit(ctx context.Context) error {
	return c.Ask(ctx, c.store.Draft())
}

// Ask appends the question to the log, sends it with the current session
// id and appends the answer. A failed call marks the question failed and
// is only logged; no bot message or alert is produced.
func (c *ConversationController) Ask(ctx context.Context, question string) error {
	if strings.TrimSpace(question) == "" {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Please enter a question."})
		return ErrEmptyQuestion
	}

	token, err := c.store.begin(askGuard)
	if err != nil {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Still waiting for the previous answer."})
		return err
	}

	defer c.store.setDraft("")
	defer c.store.settle(askGuard, token)

	userMsg := c.store.appendUser(question)
	return c.send(ctx, userMsg, c.store.Session().SessionID)
}

func (c *ConversationController) send(ctx context.Context, userMsg Message, sessionID string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.Ask(ctx, userMsg.Text, sessionID)
	if err != nil {
		c.store.setStatus(userMsg.ID, StatusFailed)
		c.log.Error("ask failed", "message_id", userMsg.ID, "session_id", sessionID, "error", err)
		return err
	}

	c.store.setStatus(userMsg.ID, StatusDelivered)
	c.store.appendBot(resp.Text)
	return nil
}
