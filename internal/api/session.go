package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/cart"
	"github.com/example/freshmart/internal/checkout"
	"github.com/example/freshmart/internal/identity"
	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

const sessionCookieName = "cart_session"

// Session is one browser's logical thread of control. It owns the identity
// provider and the cart store for that browser; the checkout flow is created
// on demand and dropped whenever the signed-in user changes.
type Session struct {
	ID       string
	Provider *identity.Provider
	Cart     *cart.Store

	mu       sync.Mutex
	flow     *checkout.Flow
	lastSeen time.Time
}

// Flow returns the active checkout flow, or nil if none was started.
func (s *Session) Flow() *checkout.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

// StartFlow installs a new checkout flow, replacing any previous one.
func (s *Session) StartFlow(flow *checkout.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = flow
}

// EndFlow drops the checkout flow after placement or abandonment.
func (s *Session) EndFlow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = nil
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// SessionManager maps the session cookie to live sessions. Sessions that go
// idle past the TTL are swept and their cart stores closed.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cartRepo storage.CartLineRepository
	ttl      time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewSessionManager(cartRepo storage.CartLineRepository, ttl time.Duration) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*Session),
		cartRepo: cartRepo,
		ttl:      ttl,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Attach resolves the request's session, creating one and setting the cookie
// if needed.
func (m *SessionManager) Attach(w http.ResponseWriter, r *http.Request) *Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		m.mu.Lock()
		session, ok := m.sessions[cookie.Value]
		m.mu.Unlock()
		if ok {
			session.touch()
			return session
		}
	}

	session := m.newSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return session
}

func (m *SessionManager) newSession() *Session {
	provider := identity.NewProvider()
	session := &Session{
		ID:       uuid.New().String(),
		Provider: provider,
		Cart:     cart.NewStore(m.cartRepo, provider),
		lastSeen: time.Now(),
	}

	// Any identity transition invalidates an in-progress checkout.
	provider.Subscribe(func(_ *model.User) {
		session.mu.Lock()
		session.flow = nil
		session.mu.Unlock()
	})

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session
}

func (m *SessionManager) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *SessionManager) sweep() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.idleSince(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, session)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Cart.Close()
	}
	if len(expired) > 0 {
		log.Printf("[Session] swept %d idle sessions", len(expired))
	}
}

// Close stops the janitor and closes every live cart.
func (m *SessionManager) Close() {
	close(m.stop)
	<-m.done

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Cart.Close()
	}
}
