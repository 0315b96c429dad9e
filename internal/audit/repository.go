package audit

import (
	"context"
	"time"

	"github.com/bissquit/identity-ledger/internal/domain"
)

// Repository defines read-only queries over transaction stamps.
type Repository interface {
	UsersByTransactionID(ctx context.Context, transactionID string) ([]domain.User, error)
	RolesByTransactionID(ctx context.Context, transactionID string) ([]domain.Role, error)
	// UsersCreatedBetween returns stamped users created in [start, end].
	UsersCreatedBetween(ctx context.Context, start, end time.Time) ([]domain.User, error)
	// RecentUsers returns stamped users, newest first.
	RecentUsers(ctx context.Context, limit int) ([]domain.User, error)
	Counts(ctx context.Context) (*Counts, error)
}

// Counts holds raw table counts used by Statistics.
type Counts struct {
	TotalUsers             int64
	UsersWithTransactionID int64
	UniqueTransactionIDs   int64
	TotalRoles             int64
}
