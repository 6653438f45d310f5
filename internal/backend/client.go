package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	uploadPath    = "/upload"
	uploadURLPath = "/uploadUrl"
	askPath       = "/ask"

	// maxErrorBody caps how much of a failed response is kept in StatusError
	maxErrorBody = 512
)

// Client handles communication with the document backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new backend client. A zero timeout means requests
// are bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: userAgent,
	}
}

// BaseURL returns the backend root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends the files at paths as one multipart request, one "files"
// part per file.
func (c *Client) Upload(ctx context.Context, paths []string) (*UploadResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	for _, path := range paths {
		if err := addFilePart(form, path); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	var result UploadResponse
	if err := c.post(ctx, uploadPath, form.FormDataContentType(), &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadURL asks the backend to ingest the given URL text
func (c *Client) UploadURL(ctx context.Context, url string) (*TextResponse, error) {
	var result TextResponse
	if err := c.postJSON(ctx, uploadURLPath, UploadURLRequest{URL: url}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ask sends a question bound to sessionID and returns the answer
func (c *Client) Ask(ctx context.Context, question, sessionID string) (*TextResponse, error) {
	var result TextResponse
	req := AskRequest{Question: question, SessionID: sessionID}
	if err := c.postJSON(ctx, askPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck verifies that the backend is reachable. Any HTTP response
// counts, since the backend exposes no dedicated health route.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend is unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned server error: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(jsonData), out)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func addFilePart(form *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	part, err := form.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
