// Package audit answers questions about which transaction last wrote which records.
package audit

import (
	"context"
	"time"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
)

// Limits for Recent.
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// Service implements transaction audit queries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new audit service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Trail lists the records last written under one transaction ID.
type Trail struct {
	TransactionID string        `json:"transaction_id"`
	Users         []domain.User `json:"users"`
	Roles         []domain.Role `json:"roles"`
}

// Statistics summarises transaction stamping across the user base.
type Statistics struct {
	TotalUsers             int64     `json:"total_users"`
	UsersWithTransactionID int64     `json:"users_with_transaction_id"`
	UniqueTransactionIDs   int64     `json:"unique_transaction_ids"`
	TotalRoles             int64     `json:"total_roles"`
	CurrentTransactionID   string    `json:"current_transaction_id"`
	CalculatedAt           time.Time `json:"calculated_at"`
}

// Validation is the result of checking a transaction ID's format.
type Validation struct {
	TransactionID        string `json:"transaction_id"`
	IsValid              bool   `json:"is_valid"`
	CurrentTransactionID string `json:"current_transaction_id"`
}

// Current describes the transaction ID of the calling request.
type Current struct {
	CurrentTransactionID string    `json:"current_transaction_id"`
	Timestamp            time.Time `json:"timestamp"`
}

// AuditTrail returns the users and roles whose last write carried transactionID.
func (s *Service) AuditTrail(ctx context.Context, transactionID string) (*Trail, error) {
	if !txn.IsValid(transactionID) {
		return nil, ErrInvalidTransactionID
	}

	users, err := s.repo.UsersByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.RolesByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("audit trail retrieved",
		"audited_transaction_id", transactionID,
		"users", len(users),
		"roles", len(roles),
	)
	return &Trail{TransactionID: transactionID, Users: users, Roles: roles}, nil
}

// ByDateRange groups users created in [start, end] by their transaction ID.
func (s *Service) ByDateRange(ctx context.Context, start, end time.Time) (map[string][]domain.User, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	users, err := s.repo.UsersCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.User)
	for _, u := range users {
		grouped[u.TransactionID] = append(grouped[u.TransactionID], u)
	}

	ctxlog.FromContext(ctx).Info("transactions by date range retrieved", "transactions", len(grouped))
	return grouped, nil
}

// Statistics computes stamping statistics.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		TotalUsers:             counts.TotalUsers,
		UsersWithTransactionID: counts.UsersWithTransactionID,
		UniqueTransactionIDs:   counts.UniqueTransactionIDs,
		TotalRoles:             counts.TotalRoles,
		CurrentTransactionID:   txn.FromContext(ctx),
		CalculatedAt:           s.now().UTC(),
	}, nil
}

// Validate reports whether transactionID is well formed.
func (s *Service) Validate(ctx context.Context, transactionID string) *Validation {
	return &Validation{
		TransactionID:        transactionID,
		IsValid:              txn.IsValid(transactionID),
		CurrentTransactionID: txn.FromContext(ctx),
	}
}

// Recent returns the most recently created stamped users.
// limit is clamped to [1, MaxRecentLimit].
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.User, error) {
	return s.repo.RecentUsers(ctx, ClampLimit(limit))
}

// Current returns the calling request's transaction ID.
func (s *Service) Current(ctx context.Context) *Current {
	return &Current{
		CurrentTransactionID: txn.FromContext(ctx),
		Timestamp:            s.now().UTC(),
	}
}

// ClampLimit bounds limit to [1, MaxRecentLimit].
func ClampLimit(limit int) int {
	return min(max(limit, 1), MaxRecentLimit)
}
