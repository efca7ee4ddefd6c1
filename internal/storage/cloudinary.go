package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// PhotoStore uploads photo evidence and resolves public URLs. Backed by
// Cloudinary; credentials come from the CLOUDINARY_* environment variables.
type PhotoStore interface {
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (url, publicID string, err error)
	Delete(ctx context.Context, publicID string) error
}

type cloudinaryStore struct {
	folder string
}

func NewPhotoStore(folder string) PhotoStore {
	if folder == "" {
		folder = "submissions"
	}
	return &cloudinaryStore{folder: folder}
}

func instance() (*cloudinary.Cloudinary, error) {
	return cloudinary.NewFromParams(
		os.Getenv("CLOUDINARY_CLOUD_NAME"),
		os.Getenv("CLOUDINARY_API_KEY"),
		os.Getenv("CLOUDINARY_API_SECRET"),
	)
}

func (s *cloudinaryStore) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, string, error) {
	cld, err := instance()
	if err != nil {
		return "", "", fmt.Errorf("cloudinary config error: %w", err)
	}

	uctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := cld.Upload.Upload(uctx, file, uploader.UploadParams{
		Folder: s.folder,
	})
	if err != nil {
		return "", "", fmt.Errorf("upload error: %w", err)
	}

	return resp.SecureURL, resp.PublicID, nil
}

func (s *cloudinaryStore) Delete(ctx context.Context, publicID string) error {
	cld, err := instance()
	if err != nil {
		return fmt.Errorf("cloudinary config error: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = cld.Upload.Destroy(dctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy error: %w", err)
	}
	return nil
}
