// Package blob stores binary assets (profile pictures, message media)
// on disk and hands out the reference URLs that message content and
// profile views embed. It only generates references; nothing here knows
// about conversations.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	ErrUploadFailed    = errors.New("blob: upload failed")
	ErrNotFound        = errors.New("blob: not found")
	ErrUnknownCategory = errors.New("blob: unknown category")
)

// Categories match the storage folders of the original deployment.
const (
	CategoryImages        = "images"
	CategoryMessageImages = "message_images"
	CategoryMessageVideos = "message_videos"
)

func validCategory(category string) bool {
	switch category {
	case CategoryImages, CategoryMessageImages, CategoryMessageVideos:
		return true
	}
	return false
}

type Service struct {
	root    string
	baseURL string
}

// New creates a blob service rooted at dir. baseURL is the externally
// reachable prefix under which uploaded files are served, without a
// trailing slash.
func New(dir, baseURL string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Service{root: dir, baseURL: baseURL}, nil
}

// Upload stores data under category/fileName and returns the reference
// URL. An empty fileName gets a generated one.
func (s *Service) Upload(ctx context.Context, data []byte, fileName, category string) (string, error) {
	if !validCategory(category) {
		return "", ErrUnknownCategory
	}
	if fileName == "" {
		fileName = uuid.NewString()
	}
	fileName = filepath.Base(fileName)

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return s.url(category, fileName), nil
}

// Resolve returns the reference URL for an already stored path like
// "images/a-x-com_profile_picture.png".
func (s *Service) Resolve(ctx context.Context, path string) (string, error) {
	category, fileName := filepath.Split(path)
	category = filepath.Clean(category)
	fileName = filepath.Base(fileName)
	if !validCategory(category) {
		return "", ErrUnknownCategory
	}

	if _, err := os.Stat(filepath.Join(s.root, category, fileName)); err != nil {
		return "", ErrNotFound
	}
	return s.url(category, fileName), nil
}

// FilePath returns the on-disk location of a stored blob for serving.
func (s *Service) FilePath(category, fileName string) (string, error) {
	if !validCategory(category) {
		return "", ErrUnknownCategory
	}
	p := filepath.Join(s.root, category, filepath.Base(fileName))
	if _, err := os.Stat(p); err != nil {
		return "", ErrNotFound
	}
	return p, nil
}

func (s *Service) url(category, fileName string) string {
	return s.baseURL + "/blobs/" + category + "/" + fileName
}
