package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/edulink/edulink-backend/internal/handlers"
)

func SetupRoutes(r *chi.Mux) {
	// Chat REST API (MongoDB history + Redis Pub/Sub fan-out)
	r.Post("/api/chat/initiate", handlers.InitiateChat)
	r.Get("/api/chat/messages", handlers.GetChatMessages)
	r.Get("/api/chat/list", handlers.GetChatList)
	r.Post("/api/chat/message", handlers.SendChatMessage)
	r.Post("/api/chat/reaction", handlers.AddChatReaction)
	r.Delete("/api/chat/message", handlers.DeleteChatMessage)

	// Identity display fields (teachers/students join)
	r.Get("/api/contacts", handlers.GetContact)

	// Media upload for chat attachments
	r.Post("/api/upload", handlers.UploadChatMedia)

	// WebSocket endpoint for realtime chat
	r.Get("/ws/chat", handlers.ChatWebSocket)
}
