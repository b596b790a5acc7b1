package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/freshmart/internal/model"
)

func TestProvider_SubscribeInvokesImmediately(t *testing.T) {
	provider := NewProvider()
	provider.SetUser(&model.User{ID: "user-1"})

	var seen []*model.User
	provider.Subscribe(func(u *model.User) {
		seen = append(seen, u)
	})

	assert.Len(t, seen, 1)
	assert.Equal(t, "user-1", seen[0].ID)
}

func TestProvider_SetUserNotifiesSubscribers(t *testing.T) {
	provider := NewProvider()

	var seen []*model.User
	provider.Subscribe(func(u *model.User) {
		seen = append(seen, u)
	})

	provider.SetUser(&model.User{ID: "user-1"})
	provider.Clear()

	assert.Len(t, seen, 3)
	assert.Nil(t, seen[0])
	assert.Equal(t, "user-1", seen[1].ID)
	assert.Nil(t, seen[2])
}

func TestProvider_SetSameUserIsNoOp(t *testing.T) {
	provider := NewProvider()
	provider.SetUser(&model.User{ID: "user-1", Name: "First"})

	notifications := 0
	provider.Subscribe(func(*model.User) {
		notifications++
	})

	// Same id, fresh pointer: must not retrigger listeners
	provider.SetUser(&model.User{ID: "user-1", Name: "Second"})

	assert.Equal(t, 1, notifications)
	assert.Equal(t, "First", provider.CurrentUser().Name)
}

func TestProvider_ClearOnGuestIsNoOp(t *testing.T) {
	provider := NewProvider()

	notifications := 0
	provider.Subscribe(func(*model.User) {
		notifications++
	})

	provider.Clear()

	assert.Equal(t, 1, notifications)
	assert.Nil(t, provider.CurrentUser())
}

func TestProvider_CurrentUser(t *testing.T) {
	provider := NewProvider()
	assert.Nil(t, provider.CurrentUser())

	provider.SetUser(&model.User{ID: "user-2"})
	assert.Equal(t, "user-2", provider.CurrentUser().ID)
}
