package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// AvatarStorage hosts avatar images remotely.
type AvatarStorage interface {
	Upload(ctx context.Context, file io.Reader) (models.Avatar, error)
	Destroy(ctx context.Context, publicID string) error
}

type CloudinaryService struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryService(cloudName, apiKey, apiSecret, folder string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld:    cld,
		folder: folder,
	}, nil
}

func (s *CloudinaryService) Upload(ctx context.Context, file io.Reader) (models.Avatar, error) {
	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: "image",
	})
	if err != nil {
		return models.Avatar{}, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return models.Avatar{}, fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}

	return models.Avatar{PublicID: res.PublicID, URL: res.SecureURL}, nil
}

func (s *CloudinaryService) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return errors.New("failed to delete from Cloudinary: " + res.Error.Message)
	}
	return nil
}
