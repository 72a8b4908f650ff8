// Package store persists User aggregates as single documents.
//
// Every driver writes the whole aggregate at once and guards it with a
// version counter: Save succeeds only if the stored version still equals the
// version the caller loaded, and bumps it on success.
package store

import (
	"context"
	"errors"

	"cheerpup/apps/backend/internal/domain"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrConflict  = errors.New("user was modified concurrently")
	ErrDuplicate = errors.New("email or phone number already registered")
)

type Store interface {
	// Create inserts a new user at version 1.
	Create(ctx context.Context, user *domain.User) error
	Load(ctx context.Context, id string) (*domain.User, error)
	// FindByLogin returns the user matching email or, when email is nil, phone.
	FindByLogin(ctx context.Context, email, phone *string) (*domain.User, error)
	// Save writes the aggregate and increments user.Version on success.
	Save(ctx context.Context, user *domain.User) error
	Ping(ctx context.Context) error
}
