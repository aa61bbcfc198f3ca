package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/chatbubble/internal/protocol"
)

type failingResponder struct{ err error }

func (f failingResponder) Respond(context.Context, string) (string, error) {
	return "", f.err
}

func postJSON(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, protocol.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp protocol.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestChatbot_Echo(t *testing.T) {
	s := NewServer(Options{})
	rec, resp := postJSON(t, s.Router(), "/api/chatbot", `{"userInput":"Hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "You said: Hi", resp.Response)
}

func TestChatbot_ResponderErrorIsFoldedIntoResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ollama error", &OllamaError{StatusCode: 404, Message: "model not found"}, "An error occurred: model not found (status code: 404)"},
		{"other error", errors.New("boom"), "An unexpected error occurred: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(Options{Responder: failingResponder{err: tc.err}})
			rec, resp := postJSON(t, s.Router(), "/api/chatbot", `{"userInput":"Hi"}`)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, resp.Response)
		})
	}
}

func TestChatbot_BadBody(t *testing.T) {
	s := NewServer(Options{})
	rec, _ := postJSON(t, s.Router(), "/api/chatbot", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestUpload(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  []byte
		status   int
		response string
	}{
		{"missing field", "", "", nil, http.StatusBadRequest, "No file part in the request"},
		{"empty filename", protocol.UploadField, "", nil, http.StatusBadRequest, "No file selected for uploading"},
		{"disallowed extension", protocol.UploadField, "run.exe", []byte("MZ"), http.StatusBadRequest, "File type not allowed"},
		{"no extension", protocol.UploadField, "README", []byte("hi"), http.StatusBadRequest, "File type not allowed"},
		{"png with wrong bytes", protocol.UploadField, "fake.png", []byte("plain text"), http.StatusBadRequest, "File type not allowed"},
		{"text file", protocol.UploadField, "notes.txt", []byte("symptoms: cough"), http.StatusOK, "File notes.txt uploaded successfully!"},
		{"real png", protocol.UploadField, "scan.PNG", pngHeader, http.StatusOK, "File scan.PNG uploaded successfully!"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewServer(Options{UploadDir: dir})

			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, uploadRequest(t, tc.field, tc.filename, tc.content))

			var resp protocol.ChatResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.response, resp.Response)

			if tc.status == http.StatusOK {
				saved, err := os.ReadFile(filepath.Join(dir, tc.filename))
				require.NoError(t, err)
				assert.Equal(t, tc.content, saved)
			}
		})
	}
}

func TestUpload_PathIsFlattened(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(Options{UploadDir: dir})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, protocol.UploadField, "../../etc/evil.txt", []byte("x")))

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(filepath.Join(dir, "evil.txt"))
	assert.NoError(t, err)
}

func TestOllamaResponder(t *testing.T) {
	var got ollamaRequest
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Message: ollamaMessage{Role: "assistant", Content: "Rest and fluids."}})
	}))
	defer ollama.Close()

	o := &OllamaResponder{BaseURL: ollama.URL, Model: "meerkat-gguf"}
	reply, err := o.Respond(context.Background(), "I have a cold")
	require.NoError(t, err)

	assert.Equal(t, "Rest and fluids.", reply)
	assert.Equal(t, "meerkat-gguf", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, ollamaMessage{Role: "user", Content: "I have a cold"}, got.Messages[0])
}

func TestOllamaResponder_StatusError(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'meerkat-gguf' not found"}`))
	}))
	defer ollama.Close()

	o := &OllamaResponder{BaseURL: ollama.URL, Model: "meerkat-gguf"}
	_, err := o.Respond(context.Background(), "hi")

	var ollamaErr *OllamaError
	require.True(t, errors.As(err, &ollamaErr))
	assert.Equal(t, http.StatusNotFound, ollamaErr.StatusCode)
	assert.Equal(t, "model 'meerkat-gguf' not found", ollamaErr.Message)
}
