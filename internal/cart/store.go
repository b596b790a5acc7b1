package cart

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// loadTimeout bounds the snapshot read on sign-in.
const loadTimeout = 10 * time.Second

// UserSource notifies the store of identity transitions. Satisfied by
// identity.Provider.
type UserSource interface {
	Subscribe(func(*model.User))
}

// backend is the per-identity persistence variant behind the store. The
// guest variant drops every durable call; the persisted variant routes
// writes through the mirror queue. Selecting a variant once per identity
// transition keeps the mutation paths free of nil-user branching.
type backend interface {
	upsert(productID string, quantity int)
	delete(productID string)
	clear(ctx context.Context) error
	load(ctx context.Context) ([]model.CartLine, error)
}

type guestBackend struct{}

func (guestBackend) upsert(string, int)          {}
func (guestBackend) delete(string)               {}
func (guestBackend) clear(context.Context) error { return nil }
func (guestBackend) load(context.Context) ([]model.CartLine, error) {
	return nil, nil
}

type persistedBackend struct {
	userID string
	mirror *Mirror
	repo   storage.CartLineRepository
}

func (b *persistedBackend) upsert(productID string, quantity int) {
	b.mirror.Upsert(b.userID, productID, quantity)
}

func (b *persistedBackend) delete(productID string) {
	b.mirror.Delete(b.userID, productID)
}

func (b *persistedBackend) clear(ctx context.Context) error {
	return b.mirror.Clear(ctx, b.userID)
}

func (b *persistedBackend) load(ctx context.Context) ([]model.CartLine, error) {
	return b.repo.ListLines(ctx, b.userID)
}

// Store is the session-scoped cart. Lines keep insertion order; at most
// one line exists per product id and quantities are always >= 1. All
// mutations are immediately visible in memory; durable mirroring is
// asynchronous and best-effort.
type Store struct {
	mu      sync.Mutex
	lines   []model.CartLine
	backend backend

	repo   storage.CartLineRepository
	mirror *Mirror
}

// NewStore creates an empty guest cart and subscribes it to identity
// transitions from source.
func NewStore(repo storage.CartLineRepository, source UserSource) *Store {
	s := &Store{
		backend: guestBackend{},
		repo:    repo,
		mirror:  NewMirror(repo),
	}
	source.Subscribe(s.onUserChange)
	return s
}

// onUserChange swaps the backend variant and the visible lines. Sign-in
// replaces any guest state with the durable snapshot; sign-out clears the
// visible cart without touching durable rows.
func (s *Store) onUserChange(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		s.lines = nil
		s.backend = guestBackend{}
		return
	}

	b := &persistedBackend{userID: user.ID, mirror: s.mirror, repo: s.repo}
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	lines, err := b.load(ctx)
	if err != nil {
		log.Printf("[Cart] failed to load cart for user %s: %v", user.ID, err)
		lines = nil
	}
	s.lines = lines
	s.backend = b
}

// AddToCart increments the quantity of an existing line by one, or appends
// a new line with quantity one.
func (s *Store) AddToCart(product model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID == product.ID {
			s.lines[i].Quantity++
			s.backend.upsert(product.ID, s.lines[i].Quantity)
			return
		}
	}
	s.lines = append(s.lines, model.CartLine{Product: product, Quantity: 1})
	s.backend.upsert(product.ID, 1)
}

// RemoveFromCart deletes the line if present. Removing an absent product
// is a no-op for the in-memory cart; the durable delete is mirrored
// regardless, which keeps it idempotent against a stale mirror row.
func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			break
		}
	}
	s.backend.delete(productID)
}

// UpdateQuantity sets the line's quantity to the given absolute value.
// A value <= 0 behaves exactly like RemoveFromCart.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveFromCart(productID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID == productID {
			s.lines[i].Quantity = quantity
			s.backend.upsert(productID, quantity)
			return
		}
	}
}

// Clear empties the cart and waits for the durable rows to be deleted.
// Callers that depend on clearing as a commit signal (checkout) must see
// the durable delete complete, not merely get queued.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lines = nil
	backend := s.backend
	s.mu.Unlock()

	return backend.clear(ctx)
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]model.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// TotalItems is the sum of all line quantities, recomputed on every call.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// Subtotal is the sum of unit price times quantity over all lines,
// recomputed on every call.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := decimal.Zero
	for _, line := range s.lines {
		subtotal = subtotal.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// Close stops the background mirror after draining queued writes.
func (s *Store) Close() {
	s.mirror.Close()
}
