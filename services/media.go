package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
)

// MaxPhotoBytes caps a single listing photo
const MaxPhotoBytes = 10 * 1024 * 1024

// MediaService stores listing photos in object storage
type MediaService struct {
	store    storage.Store
	uploader storage.Uploader
	locker   storage.Locker
}

func NewMediaService(store storage.Store, uploader storage.Uploader, locker storage.Locker) *MediaService {
	if uploader == nil {
		uploader = storage.NoOpUploader{}
	}
	return &MediaService{store: store, uploader: uploader, locker: locker}
}

// AddListingPhoto uploads data under a content-hashed key and appends the key
// to the listing. Uploading the same bytes twice is a no-op.
func (s *MediaService) AddListingPhoto(ctx context.Context, actor Actor, listingID uuid.UUID, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", models.Invalid("photo", "is empty")
	}
	if len(data) > MaxPhotoBytes {
		return "", models.Invalid("photo", "larger than %d bytes", MaxPhotoBytes)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", models.Invalid("photo", "unsupported content type %s", contentType)
	}

	unlock, err := s.locker.Lock(ctx, "listing:"+listingID.String())
	if err != nil {
		return "", fmt.Errorf("lock listing: %w", err)
	}
	defer unlock()

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return "", fmt.Errorf("get listing: %w", err)
	}
	if !actor.owns(l.SellerID) {
		return "", models.ErrForbidden
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])
	key := fmt.Sprintf("listings/%s/%s%s", listingID, contentHash, guessExtension(filename, contentType))

	if slices.Contains(l.Photos, key) {
		return key, nil
	}

	if err := s.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	l.Photos = append(l.Photos, key)
	l.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateListing(ctx, l); err != nil {
		return "", fmt.Errorf("update listing: %w", err)
	}
	return key, nil
}

// PhotoURL resolves a stored key to a URL clients can fetch
func (s *MediaService) PhotoURL(key string) string {
	return s.uploader.PublicURL(key)
}

// guessExtension determines file extension from the file name or content-type
func guessExtension(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" && isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}
