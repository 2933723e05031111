package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/edulink/edulink-backend/internal/models"
	"github.com/edulink/edulink-backend/internal/services"
)

var identityResolver services.IdentityResolver

// InitContactHandlers wires the identity resolver into the HTTP layer.
func InitContactHandlers(resolver services.IdentityResolver) {
	identityResolver = resolver
}

// GetContact handles GET /api/contacts?id=&kind=. It returns the display
// fields (name, avatar) for one teacher or student, the same projection the
// chat list join uses.
func GetContact(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	kind := models.UserKind(r.URL.Query().Get("kind"))
	if id == "" || !kind.Valid() {
		writeChatError(w, services.ErrInvalidIdentity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	contact, err := identityResolver.Resolve(ctx, id, kind)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"contact": contact,
	})
}
