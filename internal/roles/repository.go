package roles

import (
	"context"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for role data operations.
type Repository interface {
	CreateRole(ctx context.Context, role *domain.Role) error
	GetRoleByID(ctx context.Context, id string) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	ListRoles(ctx context.Context, filter Filter) ([]domain.Role, error)
	UpdateRole(ctx context.Context, role *domain.Role) error
	DeleteRole(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name string) (bool, error)
	FindByNames(ctx context.Context, names []string) ([]domain.Role, error)
	// CountUsersByRoleName counts holders of the role while it is active.
	CountUsersByRoleName(ctx context.Context, name string) (int64, error)

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	AddUserRolesTx(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error
	RemoveUserRolesTx(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error
	StampUserTx(ctx context.Context, tx pgx.Tx, userID, transactionID string) error
}

// Filter represents filter criteria for listing roles.
type Filter struct {
	ActiveOnly bool
}
