// Package users manages user accounts.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service implements user business logic.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreateUserInput holds data for creating a user. Active defaults to true.
type CreateUserInput struct {
	Username string
	Password string
	Active   *bool
}

// UpdateUserInput holds optional changes to a user. Nil fields are left untouched.
type UpdateUserInput struct {
	Username *string
	Password *string
	Active   *bool
}

// CreateUser creates a user stamped with the request's transaction ID.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	exists, err := s.repo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameExists
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:      input.Username,
		PasswordHash:  hash,
		Active:        input.Active == nil || *input.Active,
		TransactionID: txn.FromContext(ctx),
		Roles:         []domain.Role{},
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// GetUserByID returns the user with the given ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// GetUserByUsername returns the user with the given username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

// ListUsers returns users matching filter, ordered by username.
func (s *Service) ListUsers(ctx context.Context, filter Filter) ([]domain.User, error) {
	return s.repo.ListUsers(ctx, filter)
}

// UpdateUser applies input to the user and stamps the request's transaction ID.
func (s *Service) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil && *input.Username != user.Username {
		exists, err := s.repo.ExistsByUsername(ctx, *input.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if exists {
			return nil, ErrUsernameExists
		}
		user.Username = *input.Username
	}

	if input.Password != nil {
		hash, err := s.hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if input.Active != nil {
		user.Active = *input.Active
	}

	user.TransactionID = txn.FromContext(ctx)

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("user updated", "user_id", user.ID)
	return user, nil
}

// DeleteUser removes the user and its role assignments.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("user deleted", "user_id", id)
	return nil
}

// ExistsByUsername reports whether the username is taken.
func (s *Service) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.repo.ExistsByUsername(ctx, username)
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidUserID
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
