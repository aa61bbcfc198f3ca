package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chatbot", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"userInput": "Hi"}, body)

		w.Write([]byte(`{"response":"Hello!"}`))
	}))
	defer ts.Close()

	reply, err := NewClient(ts.URL + "/").SendQuery(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
}

func TestSendQuery_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
				assert.Equal(t, "boom", se.Body)
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   "<html>",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "missing field",
			status: http.StatusOK,
			body:   `{"answer":"x"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "wrong type",
			status: http.StatusOK,
			body:   `{"response":42}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := NewClient(ts.URL).SendQuery(context.Background(), "Hi")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSendQuery_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url).SendQuery(context.Background(), "Hi")
	assert.Error(t, err)
}

func TestSendQuery_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	_, err := NewClient(ts.URL, WithTimeout(50*time.Millisecond)).SendQuery(context.Background(), "Hi")
	require.Error(t, err)

	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(data))

		w.Write([]byte(`{"response":"File notes.txt uploaded successfully!"}`))
	}))
	defer ts.Close()

	reply, err := NewClient(ts.URL).Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "File notes.txt uploaded successfully!", reply)
}

func TestUpload_MissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpload_Rejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o644))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"response":"File type not allowed"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Upload(context.Background(), path)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}
