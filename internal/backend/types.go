package backend

import "fmt"

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	FileURI   string `json:"fileUri"`
	SessionID string `json:"sessionId"`
}

// UploadURLRequest is the body of POST /uploadUrl
type UploadURLRequest struct {
	URL string `json:"url"` // one or more comma-separated URLs, sent verbatim
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// TextResponse is returned by /uploadUrl and /ask
type TextResponse struct {
	Text string `json:"text"`
}

// StatusError reports a non-2xx response from the backend
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("backend %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
