package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/protocol"
)

// request is one decoded client message queued for the hub loop
type request struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the storage sync hub. It keeps the last value written to every key and tells
// subscribers when another client changes it. All state is owned by the Run goroutine.
type Hub struct {
	values      map[string]string
	subscribers map[string]map[*Client]struct{}
	clients     map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	requests   chan request
	done       chan struct{}

	logger *zap.Logger
}

// NewHub creates a hub; call Run to start it
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		values:      make(map[string]string),
		subscribers: make(map[string]map[*Client]struct{}),
		clients:     make(map[*Client]struct{}),

		register:   make(chan *Client),
		unregister: make(chan *Client),
		requests:   make(chan request, 256),
		done:       make(chan struct{}),

		logger: logger.Named("hub"),
	}
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("client connected", zap.String("client", client.ID))

		case client := <-h.unregister:
			h.drop(client)

		case req := <-h.requests:
			h.handle(req.client, req.msg)
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for key, subs := range h.subscribers {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, key)
		}
	}
	close(client.send)
	h.logger.Debug("client disconnected", zap.String("client", client.ID))
}

func (h *Hub) handle(client *Client, msg *protocol.Message) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	switch msg.Type {
	case protocol.MsgSubscribe:
		var payload protocol.SubscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Key == "" {
			h.replyError(client, msg.RequestID(), "invalid subscribe payload")
			return
		}
		subs, ok := h.subscribers[payload.Key]
		if !ok {
			subs = make(map[*Client]struct{})
			h.subscribers[payload.Key] = subs
		}
		subs[client] = struct{}{}
		h.send(client, protocol.MsgAck, protocol.AckPayload{RequestID: payload.RequestID})

	case protocol.MsgGet:
		var payload protocol.GetPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Key == "" {
			h.replyError(client, msg.RequestID(), "invalid get payload")
			return
		}
		value, exists := h.values[payload.Key]
		h.send(client, protocol.MsgValue, protocol.ValuePayload{
			RequestID: payload.RequestID,
			Key:       payload.Key,
			Value:     value,
			Exists:    exists,
		})

	case protocol.MsgSet:
		var payload protocol.SetPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Key == "" {
			h.replyError(client, msg.RequestID(), "invalid set payload")
			return
		}
		old := h.values[payload.Key]
		h.values[payload.Key] = payload.Value
		h.send(client, protocol.MsgAck, protocol.AckPayload{RequestID: payload.RequestID})

		change := protocol.ValueChangedPayload{Key: payload.Key, OldValue: old, NewValue: payload.Value}
		for sub := range h.subscribers[payload.Key] {
			if sub != client {
				h.send(sub, protocol.MsgValueChanged, change)
			}
		}

	default:
		h.replyError(client, msg.RequestID(), "unknown message type "+string(msg.Type))
	}
}

func (h *Hub) replyError(client *Client, requestID, message string) {
	h.send(client, protocol.MsgError, protocol.ErrorPayload{RequestID: requestID, Message: message})
}

// send queues a message for the client, dropping the client if its buffer is full
func (h *Hub) send(client *Client, msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.EncodeMessage(msgType, payload)
	if err != nil {
		h.logger.Error("encode message", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("client too slow, dropping", zap.String("client", client.ID))
		h.drop(client)
	}
}
