package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testUserID = "3f1c2b7e-6a4d-4b8e-9f00-1a2b3c4d5e6f"

// mockRepository implements Repository for testing.
type mockRepository struct {
	users     map[string]*domain.User
	nextID    string
	createErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[string]*domain.User), nextID: testUserID}
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = m.nextID
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) ListUsers(_ context.Context, filter Filter) ([]domain.User, error) {
	result := make([]domain.User, 0)
	for _, u := range m.users {
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		if filter.RoleName != "" && !u.HasRole(filter.RoleName) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *mockRepository) UpdateUser(_ context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockRepository) DeleteUser(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	s := NewService(repo)
	s.bcryptCost = bcrypt.MinCost
	return s, repo
}

func ctxWithTxn(id string) context.Context {
	return txn.WithID(context.Background(), id)
}

func TestService_CreateUser(t *testing.T) {
	s, repo := newTestService(t)
	ctx := ctxWithTxn("TXN-20240115100000-00001")

	user, err := s.CreateUser(ctx, CreateUserInput{Username: "alice", Password: "secret123"})

	require.NoError(t, err)
	assert.Equal(t, testUserID, user.ID)
	assert.True(t, user.Active)
	assert.Equal(t, "TXN-20240115100000-00001", user.TransactionID)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[testUserID].PasswordHash), []byte("secret123")))
	assert.NotNil(t, user.Roles)
}

func TestService_CreateUser_Inactive(t *testing.T) {
	s, _ := newTestService(t)
	active := false

	user, err := s.CreateUser(context.Background(), CreateUserInput{Username: "bob", Password: "secret123", Active: &active})

	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.True(t, txn.IsValid(user.TransactionID))
}

func TestService_CreateUser_DuplicateUsername(t *testing.T) {
	s, repo := newTestService(t)
	repo.users["other"] = &domain.User{ID: "other", Username: "alice"}

	_, err := s.CreateUser(context.Background(), CreateUserInput{Username: "alice", Password: "secret123"})

	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestService_CreateUser_RepositoryError(t *testing.T) {
	s, repo := newTestService(t)
	repo.createErr = errors.New("connection refused")

	_, err := s.CreateUser(context.Background(), CreateUserInput{Username: "alice", Password: "secret123"})

	assert.Error(t, err)
}

func TestService_CreateUser_PasswordTooLongForBcrypt(t *testing.T) {
	s, repo := newTestService(t)

	_, err := s.CreateUser(context.Background(), CreateUserInput{Username: "alice", Password: strings.Repeat("é", 40)})

	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Empty(t, repo.users)
}

func TestService_GetUserByID(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice"}

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "found", id: testUserID},
		{name: "not found", id: "00000000-0000-0000-0000-000000000001", wantErr: ErrUserNotFound},
		{name: "malformed id", id: "not-a-uuid", wantErr: ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := s.GetUserByID(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
		})
	}
}

func TestService_UpdateUser(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice", Active: true, PasswordHash: "old", TransactionID: "TXN-20240101000000-00001"}
	ctx := ctxWithTxn("TXN-20240115100000-00002")

	username := "alice2"
	password := "newsecret"
	active := false
	user, err := s.UpdateUser(ctx, testUserID, UpdateUserInput{Username: &username, Password: &password, Active: &active})

	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
	assert.False(t, user.Active)
	assert.Equal(t, "TXN-20240115100000-00002", user.TransactionID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[testUserID].PasswordHash), []byte("newsecret")))
}

func TestService_UpdateUser_KeepsUnsetFields(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice", Active: true, PasswordHash: "hash"}

	user, err := s.UpdateUser(context.Background(), testUserID, UpdateUserInput{})

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Active)
	assert.Equal(t, "hash", user.PasswordHash)
}

func TestService_UpdateUser_UsernameTaken(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice"}
	repo.users["other"] = &domain.User{ID: "other", Username: "bob"}

	username := "bob"
	_, err := s.UpdateUser(context.Background(), testUserID, UpdateUserInput{Username: &username})

	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestService_UpdateUser_SameUsername(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice"}

	username := "alice"
	_, err := s.UpdateUser(context.Background(), testUserID, UpdateUserInput{Username: &username})

	assert.NoError(t, err)
}

func TestService_DeleteUser(t *testing.T) {
	s, repo := newTestService(t)
	repo.users[testUserID] = &domain.User{ID: testUserID, Username: "alice"}

	require.NoError(t, s.DeleteUser(context.Background(), testUserID))
	assert.Empty(t, repo.users)

	err := s.DeleteUser(context.Background(), testUserID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = s.DeleteUser(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestService_ListUsers_ActiveFilter(t *testing.T) {
	s, repo := newTestService(t)
	repo.users["1"] = &domain.User{ID: "1", Username: "carol", Active: true}
	repo.users["2"] = &domain.User{ID: "2", Username: "alice", Active: false}
	repo.users["3"] = &domain.User{ID: "3", Username: "bob", Active: true}

	active := true
	list, err := s.ListUsers(context.Background(), Filter{Active: &active})

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Username)
	assert.Equal(t, "carol", list[1].Username)
}
