package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/hierarchy"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// Service exposes a user's slice of the object store as folders and files.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store  objectstore.ObjectStore
	logger *slog.Logger
}

// NewService creates a new drive service
func NewService(store objectstore.ObjectStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// ListRoot lists the user's root. With rootOnly the listing is shallow and
// sub-folders are reported once each; otherwise every object below the root
// is returned.
func (s *Service) ListRoot(ctx context.Context, userID string, rootOnly bool) ([]hierarchy.Entry, error) {
	if err := hierarchy.ValidateUserID(userID); err != nil {
		return nil, err
	}

	prefix := hierarchy.UserRoot(userID)
	delimiter := ""
	if rootOnly {
		delimiter = hierarchy.Delimiter
	}

	res, err := s.store.List(ctx, prefix, delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to list root for user %s: %w", userID, err)
	}

	return hierarchy.Entries(*res, prefix, hierarchy.ModeRoot), nil
}

// ListFlat returns every object transitively under the user root
func (s *Service) ListFlat(ctx context.Context, userID string) ([]hierarchy.Entry, error) {
	if err := hierarchy.ValidateUserID(userID); err != nil {
		return nil, err
	}

	prefix := hierarchy.UserRoot(userID)
	res, err := s.store.List(ctx, prefix, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list files for user %s: %w", userID, err)
	}

	return hierarchy.Entries(*res, prefix, hierarchy.ModeFlat), nil
}

// ListFolder returns the direct children of folderPath
func (s *Service) ListFolder(ctx context.Context, userID, folderPath string) ([]hierarchy.Entry, error) {
	if err := hierarchy.ValidateUserID(userID); err != nil {
		return nil, err
	}

	prefix := hierarchy.UserKey(userID, hierarchy.NormalizeFolder(folderPath))
	res, err := s.store.List(ctx, prefix, hierarchy.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", prefix, err)
	}

	return hierarchy.Entries(*res, prefix, hierarchy.ModeFolder), nil
}

// Upload stores body at key and returns the key
func (s *Service) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if err := s.store.Put(ctx, key, body, contentType); err != nil {
		s.logger.Error("Failed to upload file", "key", key, "error", err)
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Info("File uploaded", "key", key, "content_type", contentType)
	return key, nil
}

// Download opens the object at key. The error wraps objectstore.ErrNotFound
// when the key does not exist.
func (s *Service) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		if objectstore.IsNotFound(err) {
			s.logger.Info("File not found", "key", key)
		} else {
			s.logger.Error("Failed to download file", "key", key, "error", err)
		}
		return nil, err
	}
	return rc, nil
}

// Delete removes the object at key. Deleting a missing key reports true.
func (s *Service) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error("Failed to delete file", "key", key, "error", err)
		return false, err
	}
	return true, nil
}

// CreateFolder writes a zero-byte marker at key. A key without a trailing
// separator is normalized first. Creating an existing folder is a no-op.
func (s *Service) CreateFolder(ctx context.Context, key string) (bool, error) {
	key = hierarchy.NormalizeFolder(key)
	if key == "" {
		return false, fmt.Errorf("folder key must not be empty")
	}

	if err := s.store.Put(ctx, key, bytes.NewReader(nil), ""); err != nil {
		s.logger.Error("Failed to create folder", "key", key, "error", err)
		return false, err
	}
	return true, nil
}

// CreateUserRoot writes the marker for a new user's root folder
func (s *Service) CreateUserRoot(ctx context.Context, userID string) (bool, error) {
	if err := hierarchy.ValidateUserID(userID); err != nil {
		return false, err
	}
	return s.CreateFolder(ctx, hierarchy.UserRoot(userID))
}
