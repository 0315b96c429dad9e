// Package roles manages roles and their assignment to users.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/bissquit/identity-ledger/internal/users"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxRoleNameLength = 50

var roleNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// UserReader is the subset of the users service needed for role assignment.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context, filter users.Filter) ([]domain.User, error)
}

// Service implements role business logic.
type Service struct {
	repo  Repository
	users UserReader
}

// NewService creates a new role service.
func NewService(repo Repository, userReader UserReader) *Service {
	return &Service{
		repo:  repo,
		users: userReader,
	}
}

// CreateRoleInput holds data for creating a role. Active defaults to true.
type CreateRoleInput struct {
	Name        string
	Description string
	Active      *bool
}

// UpdateRoleInput holds optional changes to a role. Nil fields are left untouched.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Active      *bool
}

// CanonicalName upper-cases and trims a role name.
func CanonicalName(name string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(name))
}

func validateName(name string) error {
	if len(name) > maxRoleNameLength || !roleNamePattern.MatchString(name) {
		return ErrInvalidRoleName
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidRoleID
	}
	return nil
}

// CreateRole creates a role stamped with the request's transaction ID.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (*domain.Role, error) {
	name := CanonicalName(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check role name: %w", err)
	}
	if exists {
		return nil, ErrRoleExists
	}

	role := &domain.Role{
		Name:          name,
		Description:   input.Description,
		Active:        input.Active == nil || *input.Active,
		TransactionID: txn.FromContext(ctx),
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("role created", "role_id", role.ID, "role", role.Name)
	return role, nil
}

// GetRoleByID returns the role with the given ID.
func (s *Service) GetRoleByID(ctx context.Context, id string) (*domain.Role, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repo.GetRoleByID(ctx, id)
}

// GetRoleByName returns the role with the given name, matched case-insensitively.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return s.repo.GetRoleByName(ctx, CanonicalName(name))
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx, Filter{})
}

// ListActiveRoles returns active roles ordered by name.
func (s *Service) ListActiveRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx, Filter{ActiveOnly: true})
}

// UpdateRole applies input to the role and stamps the request's transaction ID.
func (s *Service) UpdateRole(ctx context.Context, id string, input UpdateRoleInput) (*domain.Role, error) {
	role, err := s.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := CanonicalName(*input.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		if name != role.Name {
			exists, err := s.repo.ExistsByName(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("check role name: %w", err)
			}
			if exists {
				return nil, ErrRoleExists
			}
			role.Name = name
		}
	}
	if input.Description != nil {
		role.Description = *input.Description
	}
	if input.Active != nil {
		role.Active = *input.Active
	}

	role.TransactionID = txn.FromContext(ctx)

	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("role updated", "role_id", role.ID, "role", role.Name)
	return role, nil
}

// DeleteRole removes the role and its assignments.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("role deleted", "role_id", id)
	return nil
}

// ExistsByName reports whether a role with the name exists.
func (s *Service) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.repo.ExistsByName(ctx, CanonicalName(name))
}

// FindByNames returns the roles matching names. Unknown names are skipped.
func (s *Service) FindByNames(ctx context.Context, names []string) ([]domain.Role, error) {
	return s.repo.FindByNames(ctx, canonicalNames(names))
}

// AssignRolesToUser grants the named roles to the user. Every name must exist.
// Assignments already held are kept as they are.
func (s *Service) AssignRolesToUser(ctx context.Context, userID string, names []string) (*domain.User, error) {
	names = canonicalNames(names)
	if len(names) == 0 {
		return nil, ErrNoRoleNames
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	found, err := s.repo.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	if missing := missingNames(names, found); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRolesNotFound, strings.Join(missing, ", "))
	}

	if err := s.applyAssignment(ctx, userID, roleIDs(found), s.repo.AddUserRolesTx); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("roles assigned", "user_id", userID, "roles", names)
	return s.users.GetUserByID(ctx, userID)
}

// RemoveRolesFromUser revokes the named roles from the user. Unknown names are ignored.
func (s *Service) RemoveRolesFromUser(ctx context.Context, userID string, names []string) (*domain.User, error) {
	names = canonicalNames(names)
	if len(names) == 0 {
		return nil, ErrNoRoleNames
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	found, err := s.repo.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}

	if err := s.applyAssignment(ctx, userID, roleIDs(found), s.repo.RemoveUserRolesTx); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("roles removed", "user_id", userID, "roles", names)
	return s.users.GetUserByID(ctx, userID)
}

type assignFunc func(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error

// applyAssignment runs change and stamps the user with the request's
// transaction ID inside one database transaction.
func (s *Service) applyAssignment(ctx context.Context, userID string, ids []string, change assignFunc) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := change(ctx, tx, userID, ids); err != nil {
		return fmt.Errorf("update user roles: %w", err)
	}
	if err := s.repo.StampUserTx(ctx, tx, userID, txn.FromContext(ctx)); err != nil {
		return fmt.Errorf("stamp user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetUserRoles returns the user's active roles.
func (s *Service) GetUserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return activeRoles(user), nil
}

// GetUserRoleNames returns the names of the user's active roles.
func (s *Service) GetUserRoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// UserHasRole reports whether the user holds the named role while it is active.
func (s *Service) UserHasRole(ctx context.Context, userID, roleName string) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	name := CanonicalName(roleName)
	for _, r := range roles {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// FindUsersByRoleName returns the holders of the named role while it is active.
func (s *Service) FindUsersByRoleName(ctx context.Context, roleName string) ([]domain.User, error) {
	return s.users.ListUsers(ctx, users.Filter{RoleName: CanonicalName(roleName)})
}

// CountUsersByRoleName counts the holders of the named role while it is active.
func (s *Service) CountUsersByRoleName(ctx context.Context, roleName string) (int64, error) {
	return s.repo.CountUsersByRoleName(ctx, CanonicalName(roleName))
}

// canonicalNames canonicalises, de-duplicates and sorts names, dropping blanks.
func canonicalNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		c := CanonicalName(n)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}

func missingNames(names []string, found []domain.Role) []string {
	have := make(map[string]struct{}, len(found))
	for _, r := range found {
		have[r.Name] = struct{}{}
	}
	var missing []string
	for _, n := range names {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func roleIDs(roles []domain.Role) []string {
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}

func activeRoles(user *domain.User) []domain.Role {
	result := make([]domain.Role, 0, len(user.Roles))
	for _, r := range user.Roles {
		if r.Active {
			result = append(result, r)
		}
	}
	return result
}
