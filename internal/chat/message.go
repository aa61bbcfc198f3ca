package chat

// Message is one chat turn, either typed by the user or returned by the bot.
type Message struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// UserMessage creates a message typed by the user
func UserMessage(content string) Message {
	return Message{Content: content, IsUser: true}
}

// BotMessage creates a message returned by the backend
func BotMessage(content string) Message {
	return Message{Content: content, IsUser: false}
}

// History is the ordered sequence of messages. Position is display order.
type History []Message

// Append returns a new history with msgs added at the end. The receiver is never modified,
// so snapshots handed out earlier stay valid.
func (h History) Append(msgs ...Message) History {
	out := make(History, 0, len(h)+len(msgs))
	out = append(out, h...)
	return append(out, msgs...)
}

// Clone returns an independent copy
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Equal reports whether both histories hold the same messages in the same order
func (h History) Equal(other History) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}
