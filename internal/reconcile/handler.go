package reconcile

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// Handler processes reconciliation events for orphaned orders: order rows
// whose items failed to persist during checkout. An order without items
// cannot be fulfilled, so the repair is to cancel it; the shopper's cart was
// left intact and they can place the order again.
type Handler struct {
	orders storage.OrderRepository
}

// NewHandler creates a new reconciliation handler
func NewHandler(orders storage.OrderRepository) *Handler {
	return &Handler{orders: orders}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.RawEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Reconciler] Failed to unmarshal event: %v", err)
		return err
	}

	if envelope.EventType != events.TypeReconciliationNeeded {
		return nil
	}
	return h.handleReconciliationNeeded(ctx, envelope)
}

func (h *Handler) handleReconciliationNeeded(ctx context.Context, envelope events.RawEnvelope) error {
	var e events.ReconciliationNeeded
	if err := json.Unmarshal(envelope.Payload, &e); err != nil {
		log.Printf("[Reconciler] Failed to unmarshal reconciliation event: %v", err)
		return err
	}

	log.Printf("[Reconciler] Cancelling orphaned order %s for user %s: %s", e.OrderID, e.UserID, e.Reason)

	if err := h.orders.UpdateOrderStatus(ctx, e.OrderID, model.OrderStatusCancelled); err != nil {
		log.Printf("[Reconciler] Failed to cancel order %s: %v", e.OrderID, err)
		return err
	}

	log.Printf("[Reconciler] Order %s cancelled", e.OrderID)
	return nil
}
