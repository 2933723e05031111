package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/edulink/edulink-backend/internal/models"
	"github.com/edulink/edulink-backend/internal/services"
)

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeChatError maps the chat error taxonomy onto HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidIdentity), errors.Is(err, services.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": err.Error(),
	})
}

// InitiateChatRequest starts (or re-resolves) a teacher-student conversation.
type InitiateChatRequest struct {
	TeacherID string `json:"teacher_id"`
	StudentID string `json:"student_id"`
}

// InitiateChat handles POST /api/chat/initiate. Idempotent: re-initiating an
// existing pair returns the same chat id.
func InitiateChat(w http.ResponseWriter, r *http.Request) {
	var req InitiateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	chatID, err := chatCoordinator.InitiateChat(ctx, req.TeacherID, req.StudentID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chat_id": chatID,
	})
}

// GetChatMessages handles GET /api/chat/messages?chat_id=&user_id=.
// Fetching history acknowledges it: the requesting user's unread counter
// for the chat is reset as part of the read.
func GetChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	userID := r.URL.Query().Get("user_id")
	if chatID == "" || userID == "" {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msgs, err := chatCoordinator.GetMessages(ctx, chatID, userID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": msgs,
	})
}

// GetChatList handles GET /api/chat/list?user_id=. Counterparts come back
// with display fields resolved against the identity store.
func GetChatList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entry, err := chatCoordinator.GetChatList(ctx, userID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"chats":   []models.ChatSummary{},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chats":   entry.Chats,
	})
}

// SendMessageRequest is the REST body for sending a message outside the
// WebSocket path (e.g. after a media upload).
type SendMessageRequest struct {
	ChatID       string           `json:"chat_id"`
	SenderID     string           `json:"sender_id"`
	SenderKind   models.UserKind  `json:"sender_kind"`
	ReceiverID   string           `json:"receiver_id"`
	ReceiverKind models.UserKind  `json:"receiver_kind"`
	Text         string           `json:"text,omitempty"`
	MediaURL     string           `json:"media_url,omitempty"`
	MediaKind    models.MediaKind `json:"media_kind,omitempty"`
	ReplyTo      string           `json:"reply_to,omitempty"`
}

// SendChatMessage handles POST /api/chat/message.
func SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	saved, err := chatCoordinator.SaveMessage(ctx, services.SaveMessageInput{
		ChatID:       req.ChatID,
		SenderID:     req.SenderID,
		SenderKind:   req.SenderKind,
		ReceiverID:   req.ReceiverID,
		ReceiverKind: req.ReceiverKind,
		Text:         req.Text,
		MediaURL:     req.MediaURL,
		MediaKind:    req.MediaKind,
		ReplyTo:      req.ReplyTo,
	})
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": saved,
	})
}

// ReactionRequest sets or replaces a user's reaction on a message.
type ReactionRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// AddChatReaction handles POST /api/chat/reaction.
func AddChatReaction(w http.ResponseWriter, r *http.Request) {
	var req ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msg, err := chatCoordinator.AddReaction(ctx, req.MessageID, req.UserID, req.Emoji)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": msg,
	})
}

// DeleteMessageRequest soft-deletes one of the requester's own messages.
type DeleteMessageRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// DeleteChatMessage handles DELETE /api/chat/message.
func DeleteChatMessage(w http.ResponseWriter, r *http.Request) {
	var req DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, services.ErrValidationFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msg, err := chatCoordinator.DeleteMessage(ctx, req.MessageID, req.UserID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": msg,
	})
}
