package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Responder produces the bot's reply to one user input
type Responder interface {
	Respond(ctx context.Context, input string) (string, error)
}

// EchoResponder answers without any model, for local development
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, input string) (string, error) {
	return "You said: " + input, nil
}

// OllamaResponder asks a local Ollama server for a single-turn chat completion
type OllamaResponder struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

// OllamaError carries a non-2xx reply from Ollama
type OllamaError struct {
	StatusCode int
	Message    string
}

func (e *OllamaError) Error() string {
	return fmt.Sprintf("%s (status code: %d)", e.Message, e.StatusCode)
}

func (o *OllamaResponder) Respond(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:    o.Model,
		Messages: []ollamaMessage{{Role: "user", Content: input}},
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(o.BaseURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}

	var out ollamaResponse
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &out) == nil && out.Error != "" {
			msg = out.Error
		}
		return "", &OllamaError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Message.Content, nil
}
