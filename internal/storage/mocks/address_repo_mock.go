package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/model"
)

// MockAddressRepo is an in-memory AddressRepository.
type MockAddressRepo struct {
	mu sync.Mutex

	Addresses []model.Address

	InsertErr error
	ListErr   error
}

func NewMockAddressRepo() *MockAddressRepo {
	return &MockAddressRepo{}
}

func (m *MockAddressRepo) ListAddresses(ctx context.Context, userID string) ([]model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var addresses []model.Address
	for _, a := range m.Addresses {
		if a.UserID == userID {
			addresses = append(addresses, a)
		}
	}
	return addresses, nil
}

func (m *MockAddressRepo) InsertAddress(ctx context.Context, addr model.Address) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	if addr.ID == "" {
		addr.ID = uuid.New().String()
	}
	m.Addresses = append(m.Addresses, addr)
	return addr.ID, nil
}
