package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no avatar is stored for a key
var ErrNotFound = errors.New("avatar not found")

// Kind namespaces avatar keys by owner type
type Kind string

const (
	KindUser         Kind = "users"
	KindOrganization Kind = "orgs"
	KindProject      Kind = "projects"
)

// AvatarStore persists avatar images for users, organizations and projects.
// Put returns the public path callers persist in the owning record's
// avatar_url field.
type AvatarStore interface {
	Put(ctx context.Context, kind Kind, id string, content io.Reader, contentType string) (string, error)
	Get(ctx context.Context, kind Kind, id string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, kind Kind, id string) error
	HealthCheck(ctx context.Context) error
}

// Config for the avatar storage backend
type Config struct {
	Type string // "filesystem" or "s3"

	// Filesystem config
	FilesystemRoot string

	// S3 config
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// extByContentType maps accepted avatar content types to file extensions.
// Uploads outside this set are rejected.
var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// contentTypeByExt is the inverse mapping used on reads
var contentTypeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ErrUnsupportedType is returned for uploads that are not a known image type
var ErrUnsupportedType = errors.New("unsupported avatar content type")

// New creates the avatar store named by cfg.Type
func New(cfg Config) (AvatarStore, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Store(cfg)
	default:
		return NewFilesystemStore(cfg.FilesystemRoot)
	}
}
