package cart

import (
	"context"
	"log"

	"github.com/example/freshmart/internal/storage"
)

type opKind int

const (
	opUpsert opKind = iota
	opDelete
	opClear
)

type mirrorOp struct {
	kind      opKind
	userID    string
	productID string
	quantity  int
	// done is set only for awaited ops (clear before checkout).
	done chan error
}

// Mirror applies cart mutations to durable storage in the background.
// Ops are applied strictly in enqueue order by a single goroutine, so a
// rapid add/update sequence cannot race itself. Failures of fire-and-forget
// ops are logged and swallowed: the in-memory cart stays the source of
// truth for the session and the durable copy catches up on the next write.
type Mirror struct {
	repo storage.CartLineRepository
	ops  chan mirrorOp
	done chan struct{}
}

func NewMirror(repo storage.CartLineRepository) *Mirror {
	m := &Mirror{
		repo: repo,
		ops:  make(chan mirrorOp, 64),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) run() {
	defer close(m.done)
	for op := range m.ops {
		err := m.apply(op)
		if op.done != nil {
			op.done <- err
			continue
		}
		if err != nil {
			log.Printf("[Cart] mirror write failed (user=%s product=%s): %v",
				op.userID, op.productID, err)
		}
	}
}

func (m *Mirror) apply(op mirrorOp) error {
	ctx := context.Background()
	switch op.kind {
	case opUpsert:
		return m.repo.UpsertLine(ctx, op.userID, op.productID, op.quantity)
	case opDelete:
		return m.repo.DeleteLine(ctx, op.userID, op.productID)
	case opClear:
		return m.repo.DeleteAllLines(ctx, op.userID)
	}
	return nil
}

// Upsert enqueues a quantity write. Fire-and-forget.
func (m *Mirror) Upsert(userID, productID string, quantity int) {
	m.ops <- mirrorOp{kind: opUpsert, userID: userID, productID: productID, quantity: quantity}
}

// Delete enqueues a line deletion. Fire-and-forget.
func (m *Mirror) Delete(userID, productID string) {
	m.ops <- mirrorOp{kind: opDelete, userID: userID, productID: productID}
}

// Clear deletes every durable line for the user and waits for the delete
// to land. Because ops are applied in order, waiting here also flushes any
// mirror writes queued before it. Checkout uses this as its commit signal.
func (m *Mirror) Clear(ctx context.Context, userID string) error {
	done := make(chan error, 1)
	select {
	case m.ops <- mirrorOp{kind: opClear, userID: userID, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the background writer after draining queued ops.
func (m *Mirror) Close() {
	close(m.ops)
	<-m.done
}
