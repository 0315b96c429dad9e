package users

import (
	"context"

	"github.com/bissquit/identity-ledger/internal/domain"
)

// Repository defines the interface for user data operations.
// Users returned by Get* and List* carry all their roles, active or not.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context, filter Filter) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// Filter represents filter criteria for listing users.
type Filter struct {
	Active *bool
	// RoleName keeps users holding this role while it is active.
	RoleName string
}
