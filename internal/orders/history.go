package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// placeholderProductName renders for items whose catalog entry was deleted
// after the order was placed. The frozen price and quantity still display.
const placeholderProductName = "Product unavailable"

// statusLabels maps the stored order statuses to their display form.
// Unknown statuses fall through unchanged.
var statusLabels = map[string]string{
	model.OrderStatusPending:    "Pending",
	model.OrderStatusConfirmed:  "Confirmed",
	model.OrderStatusDelivering: "Delivering",
	model.OrderStatusDelivered:  "Delivered",
	model.OrderStatusCancelled:  "Cancelled",
}

// ItemView is one order line prepared for display.
type ItemView struct {
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

// OrderView is one past order prepared for display.
type OrderView struct {
	ID                string          `json:"id"`
	Reference         string          `json:"reference"`
	PlacedAt          time.Time       `json:"placed_at"`
	Status            string          `json:"status"`
	StatusLabel       string          `json:"status_label"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	Total             decimal.Decimal `json:"total"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
	Items             []ItemView      `json:"items"`
}

// History reads past orders for display. It never mutates anything and it
// never fails an order because parts of it no longer resolve.
type History struct {
	repo storage.OrderRepository
}

func NewHistory(repo storage.OrderRepository) *History {
	return &History{repo: repo}
}

// List returns the user's orders newest first. Items keep their frozen
// prices; an item whose product was deleted gets a placeholder name.
func (h *History) List(ctx context.Context, userID string) ([]OrderView, error) {
	orders, err := h.repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view := OrderView{
			ID:                order.ID,
			Reference:         reference(order.ID),
			PlacedAt:          order.CreatedAt,
			Status:            order.Status,
			StatusLabel:       StatusLabel(order.Status),
			Subtotal:          order.Subtotal,
			DeliveryFee:       order.DeliveryFee,
			Total:             order.Total,
			EstimatedDelivery: order.EstimatedDelivery,
			Items:             make([]ItemView, 0, len(order.Items)),
		}
		for _, item := range order.Items {
			view.Items = append(view.Items, itemView(item))
		}
		views = append(views, view)
	}
	return views, nil
}

func itemView(item model.OrderItem) ItemView {
	view := ItemView{
		Name:      placeholderProductName,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		LineTotal: item.LineTotal(),
	}
	if item.Product != nil {
		view.Name = item.Product.Name
		view.Image = item.Product.Image
		view.Available = true
	}
	return view
}

// StatusLabel returns the display form of an order status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// reference is the short order number shown to customers.
func reference(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
