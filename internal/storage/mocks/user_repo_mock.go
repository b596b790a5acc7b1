package mocks

import (
	"context"
	"sync"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// MockUserRepo is an in-memory UserRepository.
type MockUserRepo struct {
	mu sync.Mutex

	Users  map[string]model.User         // by id
	Resets map[string]model.PasswordReset // by token hash

	InsertErr error
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		Users:  make(map[string]model.User),
		Resets: make(map[string]model.PasswordReset),
	}
}

func (m *MockUserRepo) InsertUser(ctx context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}
	for _, u := range m.Users {
		if u.Email == user.Email {
			return storage.ErrEmailTaken
		}
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user := u
	return &user, nil
}

func (m *MockUserRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.Users[userID] = u
	return nil
}

func (m *MockUserRepo) InsertPasswordReset(ctx context.Context, reset model.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Resets[reset.TokenHash] = reset
	return nil
}

func (m *MockUserRepo) GetPasswordReset(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.Resets[tokenHash]
	if !ok {
		return nil, storage.ErrResetNotFound
	}
	reset := r
	return &reset, nil
}

func (m *MockUserRepo) MarkPasswordResetUsed(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.Resets[tokenHash]
	if !ok {
		return storage.ErrResetNotFound
	}
	r.Used = true
	m.Resets[tokenHash] = r
	return nil
}
