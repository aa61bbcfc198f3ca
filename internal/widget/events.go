package widget

import "github.com/yourusername/chatbubble/internal/chat"

// Event is delivered to the OnEvent callback
type Event interface {
	isEvent()
}

// HistoryChangedEvent is sent after every history mutation, local or adopted
type HistoryChangedEvent struct {
	History chat.History
}

func (HistoryChangedEvent) isEvent() {}

// PendingChangedEvent is sent when a request starts or finishes
type PendingChangedEvent struct {
	Pending bool
}

func (PendingChangedEvent) isEvent() {}

// RequestFailedEvent is sent when a backend call failed and the error message was appended
type RequestFailedEvent struct {
	Err error
}

func (RequestFailedEvent) isEvent() {}

// ExternalChangeEvent is sent when history written by another instance was adopted
type ExternalChangeEvent struct {
	History chat.History
}

func (ExternalChangeEvent) isEvent() {}
