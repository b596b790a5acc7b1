package identity

import (
	"sync"

	"github.com/example/freshmart/internal/model"
)

// Provider holds the nullable current user for one session and notifies
// subscribers whenever presence changes. The cart store subscribes here
// instead of polling ambient globals: nil -> user means reload from durable
// storage, user -> nil means drop local state.
type Provider struct {
	mu        sync.Mutex
	user      *model.User
	listeners []func(*model.User)
}

func NewProvider() *Provider {
	return &Provider{}
}

// CurrentUser returns the current user, or nil for a guest session.
func (p *Provider) CurrentUser() *model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

// Subscribe registers a listener invoked on every presence transition.
// The listener is also invoked immediately with the current user so new
// subscribers start consistent.
func (p *Provider) Subscribe(fn func(*model.User)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	user := p.user
	p.mu.Unlock()

	fn(user)
}

// SetUser replaces the current user and notifies subscribers. Setting the
// same user id again is a no-op so repeated token validation does not
// retrigger cart reloads.
func (p *Provider) SetUser(user *model.User) {
	p.mu.Lock()
	if sameUser(p.user, user) {
		p.mu.Unlock()
		return
	}
	p.user = user
	listeners := make([]func(*model.User), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

// Clear signs the session out.
func (p *Provider) Clear() {
	p.SetUser(nil)
}

func sameUser(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
