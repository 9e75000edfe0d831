package repository

import (
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
)

const ordersTable = "orders"

func (r *Repository) CreateOrder(order model.Order) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.orders[order.OrderID]; found {
		return svcErrors.NewResourceAlreadyExistsError("order", order.OrderID, ordersTable)
	}
	r.orders[order.OrderID] = order
	return nil
}

func (r *Repository) Order(orderID string) (model.Order, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	order, found := r.orders[orderID]
	if !found {
		return model.Order{}, svcErrors.NewResourceNotFoundError("order", orderID, ordersTable)
	}
	return order, nil
}

// UpdateOrder atomically replaces the order by the result of the update function.
// If the function fails, the stored order is not modified.
func (r *Repository) UpdateOrder(orderID string, update func(model.Order) (model.Order, error)) (model.Order, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	order, found := r.orders[orderID]
	if !found {
		return model.Order{}, svcErrors.NewResourceNotFoundError("order", orderID, ordersTable)
	}

	updated, err := update(order)
	if err != nil {
		return model.Order{}, err
	}

	r.orders[orderID] = updated
	return updated, nil
}

// ListOrders returns orders matching the filter, from the oldest.
func (r *Repository) ListOrders(filter func(model.Order) bool) []model.Order {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []model.Order
	for _, order := range r.orders {
		if filter == nil || filter(order) {
			out = append(out, order)
		}
	}
	sortByCreated(out, func(o model.Order) (int64, string) { return o.CreatedAt.UnixNano(), o.OrderID })
	return out
}
