package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/edulink/edulink-backend/internal/models"
)

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld: cld,
	}, nil
}

func (s *CloudinaryService) UploadFile(ctx context.Context, file multipart.File, folder string) (string, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	uploadResult, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto", // image, video or raw, detected by Cloudinary
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return uploadResult.SecureURL, nil
}

func (s *CloudinaryService) UploadFileFromHeader(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.UploadFile(ctx, file, folder)
}

// DetectMediaKind maps an uploaded file's Content-Type onto the chat media
// kinds. Anything that is neither image nor video counts as a document.
func DetectMediaKind(contentType string) models.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	default:
		return models.MediaDocument
	}
}
