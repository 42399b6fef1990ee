package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Server exposes the router over HTTP. The chat platform (or a bridge
// process in front of it) POSTs each inbound message to /v1/updates and
// relays the returned replies back to the chat.
type Server struct {
	router *Router
	logger *zap.Logger
}

// NewServer creates a gateway HTTP server.
func NewServer(router *Router, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{router: router, logger: logger}
}

type updateRequest struct {
	UserID int64  `json:"user_id"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type updateResponse struct {
	Replies []string `json:"replies"`
}

// replyBuffer collects the replies produced while handling one update.
type replyBuffer struct {
	replies []string
}

func (b *replyBuffer) Send(_ context.Context, _ int64, text string) error {
	b.replies = append(b.replies, text)
	return nil
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/updates", s.handleUpdate)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.ChatID == 0 {
		http.Error(w, "user_id and chat_id are required", http.StatusBadRequest)
		return
	}

	buf := &replyBuffer{}
	if err := s.router.Handle(r.Context(), buf, Update{
		UserID: req.UserID,
		ChatID: req.ChatID,
		Text:   req.Text,
	}); err != nil {
		s.logger.Error("update handling failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updateResponse{Replies: buf.replies}); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}
