package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"onboarding-backend/internal/domains/onboarding"
)

const pictureKeyPrefix = "onboarding/"

// ProfilePictureStore implements onboarding.PictureStore on top of an
// object store. Uploads are normalized to a square JPEG before staging.
type ProfilePictureStore struct {
	objects   ObjectStore
	processor *ImageProcessor
}

func NewProfilePictureStore(objects ObjectStore, processor *ImageProcessor) *ProfilePictureStore {
	return &ProfilePictureStore{objects: objects, processor: processor}
}

func (s *ProfilePictureStore) Stage(ctx context.Context, ns string, upload onboarding.PictureUpload) (onboarding.Picture, error) {
	if err := s.processor.ValidateImage(upload.Data); err != nil {
		return onboarding.Picture{}, fmt.Errorf("%w: %v", onboarding.ErrInvalidValue, err)
	}
	data, err := s.processor.ProcessProfilePicture(upload.Data)
	if err != nil {
		return onboarding.Picture{}, fmt.Errorf("%w: %v", onboarding.ErrInvalidValue, err)
	}

	key := pictureKeyPrefix + ns + "/" + uuid.NewString() + ".jpg"
	url, err := s.objects.Upload(ctx, key, data, "image/jpeg")
	if err != nil {
		return onboarding.Picture{}, err
	}

	return onboarding.Picture{
		Key:         key,
		URL:         url,
		FileName:    jpegName(upload.FileName),
		ContentType: "image/jpeg",
	}, nil
}

func (s *ProfilePictureStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	return s.objects.Download(ctx, key)
}

func (s *ProfilePictureStore) Remove(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, pictureKeyPrefix) {
		return fmt.Errorf("refusing to remove %q outside the staging area", key)
	}
	return s.objects.Delete(ctx, key)
}

// jpegName keeps the user's base name with a .jpg extension
func jpegName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "profile"
	}
	return base + ".jpg"
}
