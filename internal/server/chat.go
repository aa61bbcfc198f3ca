package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/protocol"
)

// HandleChatbot answers POST /api/chatbot. Responder failures are reported inside the
// response text with status 200 so the widget shows them as a normal bot message.
func (s *Server) HandleChatbot(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ChatResponse{Response: "Invalid request body"})
		return
	}

	reply, err := s.responder.Respond(r.Context(), req.UserInput)
	if err != nil {
		s.logger.Warn("responder failed", zap.Error(err))
		var ollamaErr *OllamaError
		if errors.As(err, &ollamaErr) {
			reply = "An error occurred: " + ollamaErr.Error()
		} else {
			reply = "An unexpected error occurred: " + err.Error()
		}
	}

	writeJSON(w, http.StatusOK, protocol.ChatResponse{Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
