package handlers

import (
	"net/http"

	"github.com/edulink/edulink-backend/internal/config"
	"github.com/edulink/edulink-backend/internal/services"
)

var cloudinaryService *services.CloudinaryService

func InitCloudinaryService(cfg *config.Config) error {
	service, err := services.NewCloudinaryService(
		cfg.CloudinaryName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return err
	}
	cloudinaryService = service
	return nil
}

type UploadResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	MediaKind string `json:"media_kind,omitempty"`
}

// UploadChatMedia handles POST /api/upload. The returned secure URL and
// detected media kind go straight into a subsequent chat message.
func UploadChatMedia(w http.ResponseWriter, r *http.Request) {
	if cloudinaryService == nil {
		http.Error(w, "Cloudinary service not initialized", http.StatusInternalServerError)
		return
	}

	// Parse multipart form (max 10MB)
	err := r.ParseMultipartForm(10 << 20)
	if err != nil {
		http.Error(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "edulink/chat"
	}

	url, err := cloudinaryService.UploadFileFromHeader(r.Context(), fileHeader, folder)
	if err != nil {
		http.Error(w, "Failed to upload file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	kind := services.DetectMediaKind(fileHeader.Header.Get("Content-Type"))

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:   true,
		Message:   "File uploaded successfully",
		URL:       url,
		MediaKind: string(kind),
	})
}
