package connection

// Event represents events from the connection manager
type Event interface {
	isEvent()
}

// ConnectedEvent is sent when connection is established
type ConnectedEvent struct{}

func (ConnectedEvent) isEvent() {}

// DisconnectedEvent is sent when connection is lost
type DisconnectedEvent struct {
	Error error
}

func (DisconnectedEvent) isEvent() {}

// ErrorEvent is sent when the hub reports an error that is not tied to a pending request
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) isEvent() {}

// ValueChangedEvent is sent when another hub client changed a subscribed key
type ValueChangedEvent struct {
	Key      string
	OldValue string
	NewValue string
}

func (ValueChangedEvent) isEvent() {}
