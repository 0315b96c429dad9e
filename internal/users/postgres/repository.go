// Package postgres provides PostgreSQL implementation of the users repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/identity-ledger/internal/domain"
	pgutil "github.com/bissquit/identity-ledger/internal/pkg/postgres"
	"github.com/bissquit/identity-ledger/internal/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usernameConstraint = "users_username_key"

const userColumns = `u.id, u.username, u.password_hash, u.active, COALESCE(u.transaction_id, ''), u.created_at, u.updated_at`

// Repository implements the users.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, active, transaction_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Active,
		user.TransactionID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pgutil.IsUniqueViolation(err, usernameConstraint) {
			return users.ErrUsernameExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	if user.Roles == nil {
		user.Roles = []domain.Role{}
	}
	return nil
}

// GetUserByID retrieves a user with its roles by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return r.getOne(ctx, query, id)
}

// GetUserByUsername retrieves a user with its roles by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`
	return r.getOne(ctx, query, username)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	list := []domain.User{*user}
	if err := r.loadRoles(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListUsers retrieves users matching filter ordered by username.
func (r *Repository) ListUsers(ctx context.Context, filter users.Filter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u`
	args := []any{}
	conditions := ""

	if filter.RoleName != "" {
		args = append(args, filter.RoleName)
		query += fmt.Sprintf(`
			JOIN user_roles ur ON ur.user_id = u.id
			JOIN roles ro ON ro.id = ur.role_id AND ro.active AND ro.name = $%d`, len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = fmt.Sprintf(" WHERE u.active = $%d", len(args))
	}

	query += conditions + " ORDER BY u.username"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	if err := r.loadRoles(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateUser persists username, password hash, active flag and transaction ID.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET username = $2, password_hash = $3, active = $4, transaction_id = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Active,
		user.TransactionID,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.ErrUserNotFound
		}
		if pgutil.IsUniqueViolation(err, usernameConstraint) {
			return users.ErrUsernameExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// DeleteUser deletes a user. Role assignments are removed by cascade.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// ExistsByUsername reports whether a user with the username exists.
func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// loadRoles attaches roles to every user in a single query.
func (r *Repository) loadRoles(ctx context.Context, list []domain.User) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		index[list[i].ID] = i
		list[i].Roles = []domain.Role{}
	}

	query := `
		SELECT ur.user_id, ro.id, ro.name, ro.description, ro.active,
		       COALESCE(ro.transaction_id, ''), ro.created_at, ro.updated_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1::uuid[])
		ORDER BY ro.name
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var role domain.Role
		err := rows.Scan(
			&userID,
			&role.ID,
			&role.Name,
			&role.Description,
			&role.Active,
			&role.TransactionID,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan user role: %w", err)
		}
		if i, ok := index[userID]; ok {
			list[i].Roles = append(list[i].Roles, role)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate user roles: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Active,
		&user.TransactionID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
