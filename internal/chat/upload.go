package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"docchat/internal/backend"
)

const uploadGuard = "upload"

// Backend is the subset of the backend client the controllers need
type Backend interface {
	Upload(ctx context.Context, paths []string) (*backend.UploadResponse, error)
	UploadURL(ctx context.Context, url string) (*backend.TextResponse, error)
	Ask(ctx context.Context, question, sessionID string) (*backend.TextResponse, error)
}

// UploadController submits local files and URL text to the backend and
// captures the resulting session.
type UploadController struct {
	store   *Store
	backend Backend
	alerts  Alerter
	log     *slog.Logger
	timeout time.Duration
}

// NewUploadController creates an upload controller. A zero timeout leaves
// requests bounded only by the caller's context.
func NewUploadController(store *Store, client Backend, alerts Alerter, logger *slog.Logger, timeout time.Duration) *UploadController {
	return &UploadController{
		store:   store,
		backend: client,
		alerts:  orNopAlerter(alerts),
		log:     orDiscardLogger(logger),
		timeout: timeout,
	}
}

// SelectFiles replaces the current selection. No validation happens here.
func (c *UploadController) SelectFiles(paths []string) {
	c.store.setSelection(paths)
}

// Selection returns the selected paths
func (c *UploadController) Selection() []string {
	return c.store.Selection()
}

// SubmitFiles uploads the current selection and stores the returned session
func (c *UploadController) SubmitFiles(ctx context.Context) error {
	paths := c.store.Selection()
	if len(paths) == 0 {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Please select at least one file before uploading."})
		return ErrNoFiles
	}

	token, err := c.store.begin(uploadGuard)
	if err != nil {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "An upload is already in progress."})
		return err
	}
	defer c.store.settle(uploadGuard, token)

	return c.upload(ctx, paths)
}

// SubmitPaths selects paths and uploads them as one step. If an upload is
// already outstanding it returns ErrBusy without alerting and the current
// selection is left as it was.
func (c *UploadController) SubmitPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}

	token, err := c.store.begin(uploadGuard)
	if err != nil {
		return err
	}
	defer c.store.settle(uploadGuard, token)

	c.store.setSelection(paths)
	return c.upload(ctx, paths)
}

// upload must be called with the upload guard held
func (c *UploadController) upload(ctx context.Context, paths []string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.Upload(ctx, paths)
	if err != nil {
		c.log.Error("file upload failed", "files", len(paths), "error", err)
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Failed to upload files."})
		return err
	}

	c.store.setSession(Session{SessionID: resp.SessionID, FileURI: resp.FileURI})
	c.log.Info("files uploaded", "files", len(paths), "session_id", resp.SessionID, "file_uri", resp.FileURI)
	c.alerts.Alert(Alert{Kind: AlertSuccess, Message: "Files uploaded successfully."})
	return nil
}

// SubmitURL sends comma-separated URL text to the backend verbatim and
// appends the reply as a bot message. The session is left untouched.
func (c *UploadController) SubmitURL(ctx context.Context, urls string) error {
	if strings.TrimSpace(urls) == "" {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Please enter at least one URL."})
		return ErrEmptyURL
	}

	token, err := c.store.begin(uploadGuard)
	if err != nil {
		c.alerts.Alert(Alert{Kind: AlertError, Message: "An upload is already in progress."})
		return err
	}
	defer c.store.settle(uploadGuard, token)

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.UploadURL(ctx, urls)
	if err != nil {
		c.log.Error("url upload failed", "url", urls, "error", err)
		c.alerts.Alert(Alert{Kind: AlertError, Message: "Failed to upload URL."})
		return err
	}

	c.store.appendBot(resp.Text)
	c.log.Info("url uploaded", "url", urls)
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func orNopAlerter(a Alerter) Alerter {
	if a == nil {
		return AlerterFunc(func(Alert) {})
	}
	return a
}

func orDiscardLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
