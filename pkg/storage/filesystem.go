package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemStore keeps avatars on local disk under root/<kind>/<id><ext>.
// It is the default backend for development and single-node deployments.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a filesystem-backed avatar store
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Put writes the avatar, replacing any previous one regardless of extension
func (s *FilesystemStore) Put(ctx context.Context, kind Kind, id string, content io.Reader, contentType string) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	if err := s.removeExisting(kind, id); err != nil {
		return "", err
	}

	path := filepath.Join(dir, id+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create avatar file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write avatar: %w", err)
	}

	return fmt.Sprintf("/avatars/%s/%s%s", kind, id, ext), nil
}

// Get opens the stored avatar and reports its content type
func (s *FilesystemStore) Get(ctx context.Context, kind Kind, id string) (io.ReadCloser, string, error) {
	path, ext, err := s.find(kind, id)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open avatar: %w", err)
	}
	return f, contentTypeByExt[ext], nil
}

// Delete removes the stored avatar. Deleting a missing avatar is a no-op.
func (s *FilesystemStore) Delete(ctx context.Context, kind Kind, id string) error {
	return s.removeExisting(kind, id)
}

// HealthCheck verifies the storage root is writable
func (s *FilesystemStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}

func (s *FilesystemStore) find(kind Kind, id string) (string, string, error) {
	for ext := range contentTypeByExt {
		path := filepath.Join(s.root, string(kind), id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, ext, nil
		}
	}
	return "", "", ErrNotFound
}

func (s *FilesystemStore) removeExisting(kind Kind, id string) error {
	for ext := range contentTypeByExt {
		path := filepath.Join(s.root, string(kind), id+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove avatar: %w", err)
		}
	}
	return nil
}
