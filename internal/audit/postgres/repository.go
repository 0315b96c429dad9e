// Package postgres provides PostgreSQL implementation of the audit repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/identity-ledger/internal/audit"
	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, active, COALESCE(transaction_id, ''), created_at, updated_at`

// Repository implements the audit.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UsersByTransactionID retrieves users last written under transactionID.
func (r *Repository) UsersByTransactionID(ctx context.Context, transactionID string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE transaction_id = $1 ORDER BY username`
	return r.queryUsers(ctx, query, transactionID)
}

// RolesByTransactionID retrieves roles last written under transactionID.
func (r *Repository) RolesByTransactionID(ctx context.Context, transactionID string) ([]domain.Role, error) {
	query := `
		SELECT id, name, description, active, transaction_id, created_at, updated_at
		FROM roles
		WHERE transaction_id = $1
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("roles by transaction id: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Role, 0)
	for rows.Next() {
		var role domain.Role
		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.Description,
			&role.Active,
			&role.TransactionID,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return result, nil
}

// UsersCreatedBetween retrieves stamped users created in [start, end].
func (r *Repository) UsersCreatedBetween(ctx context.Context, start, end time.Time) ([]domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE transaction_id IS NOT NULL AND created_at BETWEEN $1 AND $2
		ORDER BY created_at
	`
	return r.queryUsers(ctx, query, start, end)
}

// RecentUsers retrieves stamped users, newest first.
func (r *Repository) RecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE transaction_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.queryUsers(ctx, query, limit)
}

// Counts returns user and role counts in a single round trip.
func (r *Repository) Counts(ctx context.Context) (*audit.Counts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE transaction_id IS NOT NULL),
			(SELECT COUNT(DISTINCT transaction_id) FROM users),
			(SELECT COUNT(*) FROM roles)
	`
	var c audit.Counts
	err := r.db.QueryRow(ctx, query).Scan(
		&c.TotalUsers,
		&c.UsersWithTransactionID,
		&c.UniqueTransactionIDs,
		&c.TotalRoles,
	)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	return &c, nil
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.User, 0)
	for rows.Next() {
		user := domain.User{Roles: []domain.Role{}}
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Active,
			&user.TransactionID,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}
