// Package directory maintains the global list of registered users that
// backs user search, plus the per-user profile nodes.
package directory

import (
	"context"
	"errors"

	"github.com/lqv/messenger/internal/docstore"
	"github.com/lqv/messenger/internal/identity"
	"github.com/lqv/messenger/internal/models"
)

var ErrUserExists = errors.New("directory: user already registered")

const listPath = "users"

type Service struct {
	db *docstore.Store
}

func New(db *docstore.Store) *Service {
	return &Service{db: db}
}

func profilePath(key string) string { return "users/" + key }

// Register creates the user's profile node and appends a directory
// entry. The list is append-only; there is no update or removal.
func (s *Service) Register(ctx context.Context, user models.User) (string, error) {
	key := identity.Canonicalize(user.Email)

	err := s.db.Update(ctx, func(tx *docstore.Tx) error {
		var existing models.Profile
		err := tx.Get(profilePath(key), &existing)
		if err == nil {
			return ErrUserExists
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}

		if err := tx.Set(profilePath(key), models.Profile{
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}); err != nil {
			return err
		}

		var entries []models.DirectoryEntry
		if err := tx.Get(listPath, &entries); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		entries = append(entries, models.DirectoryEntry{
			Name:  user.DisplayName(),
			Email: key,
		})
		return tx.Set(listPath, entries)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Exists reports whether a profile node is present for key.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	var profile models.Profile
	err := s.db.Get(ctx, profilePath(key), &profile)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Profile returns the stored profile for key.
func (s *Service) Profile(ctx context.Context, key string) (models.Profile, error) {
	var profile models.Profile
	err := s.db.Get(ctx, profilePath(key), &profile)
	return profile, err
}

// ListAll returns every directory entry. An unregistered system yields
// an empty list, not an error.
func (s *Service) ListAll(ctx context.Context) ([]models.DirectoryEntry, error) {
	var entries []models.DirectoryEntry
	err := s.db.Get(ctx, listPath, &entries)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}
