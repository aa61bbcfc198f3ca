package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHistory is wrapped by every DecodeError.
var ErrMalformedHistory = errors.New("malformed chat history")

// DecodeError describes why a stored history was rejected.
// Index is the offending element, or -1 when the document itself is invalid.
type DecodeError struct {
	Index  int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedHistory, e.Reason)
	}
	return fmt.Sprintf("%s: message %d: %s", ErrMalformedHistory, e.Index, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformedHistory
}

// Encode serializes the history as a JSON array. An empty history encodes as "[]".
func Encode(h History) (string, error) {
	if h == nil {
		h = History{}
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode chat history: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored history. An empty string is an empty history.
// Every element must carry exactly a string "content" and a boolean "isUser".
func Decode(data string) (History, error) {
	if strings.TrimSpace(data) == "" {
		return History{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, &DecodeError{Index: -1, Reason: "not a JSON array: " + err.Error()}
	}
	if raw == nil {
		return nil, &DecodeError{Index: -1, Reason: "null is not a history"}
	}

	h := make(History, 0, len(raw))
	for i, elem := range raw {
		msg, err := decodeMessage(elem)
		if err != nil {
			return nil, &DecodeError{Index: i, Reason: err.Error()}
		}
		h = append(h, msg)
	}
	return h, nil
}

func decodeMessage(elem json.RawMessage) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
		return Message{}, errors.New("not an object")
	}

	var msg Message
	content, ok := fields["content"]
	if !ok {
		return Message{}, errors.New(`missing "content"`)
	}
	if err := strictString(content, &msg.Content); err != nil {
		return Message{}, fmt.Errorf(`"content": %w`, err)
	}

	isUser, ok := fields["isUser"]
	if !ok {
		return Message{}, errors.New(`missing "isUser"`)
	}
	if err := strictBool(isUser, &msg.IsUser); err != nil {
		return Message{}, fmt.Errorf(`"isUser": %w`, err)
	}

	for name := range fields {
		if name != "content" && name != "isUser" {
			return Message{}, fmt.Errorf("unexpected field %q", name)
		}
	}
	return msg, nil
}

// json.Unmarshal accepts null for any type, so these reject it explicitly
func strictString(raw json.RawMessage, dst *string) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("not a string")
	}
	return nil
}

func strictBool(raw json.RawMessage, dst *bool) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("not a boolean")
	}
	return nil
}
