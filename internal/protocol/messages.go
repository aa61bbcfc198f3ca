// Package protocol holds the wire types shared by the widget, the dev backend and the
// storage sync hub.
package protocol

import "encoding/json"

// ChatRequest is the body of POST /api/chatbot
type ChatRequest struct {
	UserInput string `json:"userInput"`
}

// ChatResponse is returned by both /api/chatbot and /api/upload
type ChatResponse struct {
	Response string `json:"response"`
}

// UploadField is the multipart form field carrying the uploaded file
const UploadField = "file"

// MaxMessageSize is the largest sync hub message either side will send or read
const MaxMessageSize = 16 << 20

// MessageType defines the type of a sync hub WebSocket message
type MessageType string

const (
	// Client -> Hub
	MsgSubscribe MessageType = "subscribe" // start receiving value_changed for a key
	MsgGet       MessageType = "get"
	MsgSet       MessageType = "set"

	// Hub -> Client
	MsgValue        MessageType = "value" // reply to get
	MsgAck          MessageType = "ack"   // reply to set and subscribe
	MsgValueChanged MessageType = "value_changed"
	MsgError        MessageType = "error"
)

// Message is the wrapper for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload asks the hub for change notifications on Key
type SubscribePayload struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
}

// GetPayload asks the hub for the current value of Key
type GetPayload struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
}

// SetPayload stores Value under Key
type SetPayload struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// ValuePayload answers a get. Exists is false when the key was never set.
type ValuePayload struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Exists    bool   `json:"exists"`
}

// AckPayload confirms a set or subscribe
type AckPayload struct {
	RequestID string `json:"request_id"`
}

// ValueChangedPayload is broadcast to every subscriber except the writer
type ValueChangedPayload struct {
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
}

// EncodeMessage encodes a message with its payload
func EncodeMessage(msgType MessageType, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Type:    msgType,
		Payload: payloadBytes,
	}

	return json.Marshal(msg)
}

// DecodeMessage decodes a message
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// RequestID extracts the request_id field shared by request/reply payloads.
// Messages without one return "".
func (m *Message) RequestID() string {
	var probe struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(m.Payload, &probe); err != nil {
		return ""
	}
	return probe.RequestID
}
