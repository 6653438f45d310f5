package fakebackend

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/backend"
)

func TestUploadRequiresFiles(t *testing.T) {
	s := New(false)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("note", "no files here"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, s.Uploads(), 1)
	assert.Empty(t, s.Uploads()[0])
}

func TestUploadGeneratesSession(t *testing.T) {
	s := New(false)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("files", "doc.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp backend.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "files/doc.pdf", resp.FileURI)
	assert.NotEmpty(t, resp.SessionID)
}

func TestAskDefaultAnswerAndReset(t *testing.T) {
	s := New(false)
	s.Fail("/ask", http.StatusServiceUnavailable)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"hi","sessionId":"s1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, post().Code)

	s.Reset()
	rec := post()
	require.Equal(t, http.StatusOK, rec.Code)
	var resp backend.TextResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "You asked: **hi**", resp.Text)
	assert.Len(t, s.Questions(), 2)
}
