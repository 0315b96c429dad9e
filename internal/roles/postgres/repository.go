// Package postgres provides PostgreSQL implementation of the roles repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/identity-ledger/internal/domain"
	pgutil "github.com/bissquit/identity-ledger/internal/pkg/postgres"
	"github.com/bissquit/identity-ledger/internal/roles"
	"github.com/bissquit/identity-ledger/internal/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const nameConstraint = "roles_name_key"

const roleColumns = `id, name, description, active, COALESCE(transaction_id, ''), created_at, updated_at`

// Repository implements the roles.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role *domain.Role) error {
	query := `
		INSERT INTO roles (name, description, active, transaction_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		role.Name,
		role.Description,
		role.Active,
		role.TransactionID,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)

	if err != nil {
		if pgutil.IsUniqueViolation(err, nameConstraint) {
			return roles.ErrRoleExists
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetRoleByID retrieves a role by its ID.
func (r *Repository) GetRoleByID(ctx context.Context, id string) (*domain.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	role, err := scanRole(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roles.ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role by id: %w", err)
	}
	return role, nil
}

// GetRoleByName retrieves a role by its name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`
	role, err := scanRole(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roles.ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return role, nil
}

// ListRoles retrieves roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context, filter roles.Filter) ([]domain.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles`
	if filter.ActiveOnly {
		query += " WHERE active"
	}
	query += " ORDER BY name"

	return r.queryRoles(ctx, query)
}

// FindByNames retrieves the roles whose names are in names.
func (r *Repository) FindByNames(ctx context.Context, names []string) ([]domain.Role, error) {
	if len(names) == 0 {
		return []domain.Role{}, nil
	}
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = ANY($1) ORDER BY name`
	return r.queryRoles(ctx, query, names)
}

func (r *Repository) queryRoles(ctx context.Context, query string, args ...any) ([]domain.Role, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		result = append(result, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return result, nil
}

// UpdateRole persists name, description, active flag and transaction ID.
func (r *Repository) UpdateRole(ctx context.Context, role *domain.Role) error {
	query := `
		UPDATE roles
		SET name = $2, description = $3, active = $4, transaction_id = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.Active,
		role.TransactionID,
	).Scan(&role.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roles.ErrRoleNotFound
		}
		if pgutil.IsUniqueViolation(err, nameConstraint) {
			return roles.ErrRoleExists
		}
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// DeleteRole deletes a role. Assignments are removed by cascade.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return roles.ErrRoleNotFound
	}
	return nil
}

// ExistsByName reports whether a role with the name exists.
func (r *Repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role exists: %w", err)
	}
	return exists, nil
}

// CountUsersByRoleName counts users holding the named role while it is active.
func (r *Repository) CountUsersByRoleName(ctx context.Context, name string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ro.name = $1 AND ro.active
	`
	var count int64
	if err := r.db.QueryRow(ctx, query, name).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// BeginTx starts a new database transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// AddUserRolesTx assigns roles to a user within a transaction. Existing assignments are kept.
func (r *Repository) AddUserRolesTx(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error {
	insertQuery := `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, roleID := range roleIDs {
		_, err := tx.Exec(ctx, insertQuery, userID, roleID)
		if err != nil {
			return fmt.Errorf("add role %s: %w", roleID, err)
		}
	}
	return nil
}

// RemoveUserRolesTx removes role assignments from a user within a transaction.
func (r *Repository) RemoveUserRolesTx(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = ANY($2::uuid[])`, userID, roleIDs)
	if err != nil {
		return fmt.Errorf("remove user roles: %w", err)
	}
	return nil
}

// StampUserTx records transactionID as the last writer of the user.
func (r *Repository) StampUserTx(ctx context.Context, tx pgx.Tx, userID, transactionID string) error {
	query := `UPDATE users SET transaction_id = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`
	result, err := tx.Exec(ctx, query, userID, transactionID)
	if err != nil {
		return fmt.Errorf("stamp user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.Active,
		&role.TransactionID,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}
