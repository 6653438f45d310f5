// Package fakebackend provides an in-process implementation of the document
// backend endpoints for tests and local demos.
package fakebackend

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"docchat/internal/backend"
)

// UploadedFile records one multipart part received by /upload
type UploadedFile struct {
	Name string
	Size int64
}

// Server is a scriptable fake backend
type Server struct {
	e *echo.Echo

	mu        sync.Mutex
	uploads   [][]UploadedFile
	urls      []string
	questions []backend.AskRequest
	failures  map[string]int  // path -> status to return
	malformed map[string]bool // path -> return invalid JSON
	upload    *backend.UploadResponse
	answers   map[string]string
}

// New creates a fake backend with its routes registered
func New(logRequests bool) *Server {
	s := &Server{
		failures:  make(map[string]int),
		malformed: make(map[string]bool),
		answers:   make(map[string]string),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if logRequests {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/", s.handleRoot)
	e.POST("/upload", s.handleUpload)
	e.POST("/uploadUrl", s.handleUploadURL)
	e.POST("/ask", s.handleAsk)

	s.e = e
	return s
}

// Handler exposes the server as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until the server fails
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Fail makes every request to path answer with status until Reset
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Malformed makes path answer 200 with a body that is not JSON
func (s *Server) Malformed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[path] = true
}

// Reset clears scripted failures
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
	s.malformed = make(map[string]bool)
}

// SetUploadResponse fixes the body returned by /upload
func (s *Server) SetUploadResponse(resp backend.UploadResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = &resp
}

// SetAnswer scripts the answer to an exact question
func (s *Server) SetAnswer(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[question] = answer
}

// Uploads returns the files received per /upload call
func (s *Server) Uploads() [][]UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]UploadedFile, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// URLs returns the url fields received by /uploadUrl
func (s *Server) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// Questions returns the bodies received by /ask
func (s *Server) Questions() []backend.AskRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.AskRequest(nil), s.questions...)
}

// Requests returns the total number of POST calls received
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads) + len(s.urls) + len(s.questions)
}

// scripted returns true when a failure or malformed body was written
func (s *Server) scripted(c echo.Context) (bool, error) {
	path := c.Path()

	s.mu.Lock()
	status, fail := s.failures[path]
	bad := s.malformed[path]
	s.mu.Unlock()

	if fail {
		return true, c.JSON(status, map[string]string{"error": http.StatusText(status)})
	}
	if bad {
		return true, c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(`{"text":`))
	}
	return false, nil
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "multipart form required"})
	}

	headers := form.File["files"]
	files := make([]UploadedFile, 0, len(headers))
	for _, h := range headers {
		files = append(files, UploadedFile{Name: h.Filename, Size: h.Size})
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, files)
	preset := s.upload
	s.mu.Unlock()

	if done, err := s.scripted(c); done {
		return err
	}
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no files"})
	}

	if preset != nil {
		return c.JSON(http.StatusOK, preset)
	}
	return c.JSON(http.StatusOK, backend.UploadResponse{
		FileURI:   "files/" + files[0].Name,
		SessionID: uuid.New().String(),
	})
}

func (s *Server) handleUploadURL(c echo.Context) error {
	var req backend.UploadURLRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	s.mu.Lock()
	s.urls = append(s.urls, req.URL)
	s.mu.Unlock()

	if done, err := s.scripted(c); done {
		return err
	}

	count := 0
	for _, u := range strings.Split(req.URL, ",") {
		if strings.TrimSpace(u) != "" {
			count++
		}
	}
	return c.JSON(http.StatusOK, backend.TextResponse{
		Text: fmt.Sprintf("Ingested %d URL(s).", count),
	})
}

func (s *Server) handleAsk(c echo.Context) error {
	var req backend.AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	s.mu.Lock()
	s.questions = append(s.questions, req)
	answer, ok := s.answers[req.Question]
	s.mu.Unlock()

	if done, err := s.scripted(c); done {
		return err
	}
	if !ok {
		answer = fmt.Sprintf("You asked: **%s**", req.Question)
	}
	return c.JSON(http.StatusOK, backend.TextResponse{Text: answer})
}
