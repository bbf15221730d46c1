package supabase

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE CLIENT
// Avatar uploads into a Supabase Storage bucket. Implements
// command.AvatarStorage.
// ══════════════════════════════════════════════════════════════════════════════

// MaxAvatarSize is the upload ceiling for avatar images.
const MaxAvatarSize = 5 * 1024 * 1024

// allowedImageTypes maps accepted MIME types to their canonical extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// StorageClient uploads files to Supabase Storage.
type StorageClient struct {
	client *client
	bucket string
}

// NewStorageClient creates a new StorageClient.
func NewStorageClient(cfg Config) *StorageClient {
	bucket := cfg.AvatarBucket
	if bucket == "" {
		bucket = "avatars"
	}
	return &StorageClient{
		client: newClient(cfg, "storage"),
		bucket: bucket,
	}
}

// ValidateImage checks size and MIME type before any bytes leave the service.
func ValidateImage(contentType string, size int) error {
	if size > MaxAvatarSize {
		return shared.ErrImageTooLarge
	}
	if _, ok := allowedImageTypes[strings.ToLower(contentType)]; !ok {
		return shared.ErrUnsupportedImage
	}
	return nil
}

// UploadAvatar validates and uploads an avatar, returning its public URL.
// Each upload gets a fresh key under the user's folder: the public URL must
// change, or clients keep serving the cached old avatar. Old objects stay
// until Delete is called for them.
func (c *StorageClient) UploadAvatar(ctx context.Context, userID shared.UserID, filename, contentType string, data []byte) (string, error) {
	if err := ValidateImage(contentType, len(data)); err != nil {
		return "", err
	}

	ext := path.Ext(filename)
	if ext == "" {
		ext = allowedImageTypes[strings.ToLower(contentType)]
	}
	key := fmt.Sprintf("%s/avatar-%d%s", userID.String(), time.Now().UTC().Unix(), ext)

	err := c.client.do(ctx, request{
		method:      http.MethodPost,
		path:        fmt.Sprintf("/storage/v1/object/%s/%s", c.bucket, key),
		bearer:      c.client.config.ServiceKey,
		body:        data,
		contentType: contentType,
	}, nil)
	if err != nil {
		return "", shared.WrapError("storage", "UploadAvatar", shared.ErrServiceUnavailable, "storage upload failed", err)
	}

	return c.PublicURL(key), nil
}

// Delete removes an object from the avatar bucket.
func (c *StorageClient) Delete(ctx context.Context, key string) error {
	err := c.client.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/storage/v1/object/%s/%s", c.bucket, key),
		bearer: c.client.config.ServiceKey,
	}, nil)
	if err != nil {
		return shared.WrapError("storage", "Delete", shared.ErrServiceUnavailable, "storage delete failed", err)
	}
	return nil
}

// PublicURL resolves the public URL of an object in the avatar bucket.
func (c *StorageClient) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.client.config.ProjectURL, c.bucket, key)
}
