package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver"
	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/fulfillment"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// nolint: gochecknoglobals
var orderStates = []model.OrderState{
	model.OrderPending,
	model.OrderScheduled,
	model.OrderInProgress,
	model.OrderCompleted,
	model.OrderFailed,
	model.OrderCancelled,
	model.OrderRefunded,
}

func (a *API) bookOrder(w http.ResponseWriter, req *http.Request) error {
	payload := BookOrderRequest{}
	if err := a.decode(req, &payload); err != nil {
		return err
	}

	slot, offset, err := parseSlot(payload.Slot, payload.LocalOffset)
	if err != nil {
		return err
	}

	identity := identityFrom(req.Context())
	order, err := a.orders.Book(req.Context(), model.OrderSpec{
		Type:        model.OrderType(payload.Type),
		Child:       payload.Child,
		Requester:   model.Requester{AccountID: identity.AccountID, OrganizationID: identity.OrganizationID},
		Slot:        slot,
		LocalOffset: offset,
		Gift:        payload.Gift,
	})
	if err != nil {
		return err
	}

	httpserver.WriteJSON(w, http.StatusCreated, orderView(order))
	return nil
}

func (a *API) listOrders(w http.ResponseWriter, req *http.Request) error {
	identity := identityFrom(req.Context())
	filter := fulfillment.ListFilter{AccountID: identity.AccountID, OrganizationID: identity.OrganizationID}

	if state := req.URL.Query().Get("state"); state != "" {
		filter.State = model.OrderState(state)
		if !isOrderState(filter.State) {
			return svcErrors.NewBadRequestError(errors.Errorf(
				`invalid order state "%s", expected one of [%s]`, state, joinStates(),
			))
		}
	}

	httpserver.WriteJSON(w, http.StatusOK, ordersView(a.orders.List(req.Context(), filter)))
	return nil
}

func (a *API) getOrder(w http.ResponseWriter, req *http.Request) error {
	order, err := a.ownedOrder(req)
	if err != nil {
		return err
	}
	httpserver.WriteJSON(w, http.StatusOK, orderView(order))
	return nil
}

func (a *API) getOrderCall(w http.ResponseWriter, req *http.Request) error {
	order, err := a.ownedOrder(req)
	if err != nil {
		return err
	}

	conv, err := a.orders.Call(req.Context(), order.OrderID)
	if err != nil {
		return err
	}

	httpserver.WriteJSON(w, http.StatusOK, callView(conv))
	return nil
}

func (a *API) cancelOrder(w http.ResponseWriter, req *http.Request) error {
	order, err := a.ownedOrder(req)
	if err != nil {
		return err
	}

	order, err = a.orders.Cancel(req.Context(), order.OrderID)
	if err != nil {
		return err
	}

	httpserver.WriteJSON(w, http.StatusOK, orderView(order))
	return nil
}

func (a *API) rescheduleOrder(w http.ResponseWriter, req *http.Request) error {
	order, err := a.ownedOrder(req)
	if err != nil {
		return err
	}

	payload := RescheduleOrderRequest{}
	if err := a.decode(req, &payload); err != nil {
		return err
	}

	slot, offset, err := parseSlot(payload.Slot, payload.LocalOffset)
	if err != nil {
		return err
	}

	order, err = a.orders.Reschedule(req.Context(), order.OrderID, slot, offset)
	if err != nil {
		return err
	}

	httpserver.WriteJSON(w, http.StatusOK, orderView(order))
	return nil
}

func (a *API) refundOrder(w http.ResponseWriter, req *http.Request) error {
	order, err := a.orders.Refund(req.Context(), chi.URLParam(req, "orderId"))
	if err != nil {
		return err
	}

	httpserver.WriteJSON(w, http.StatusOK, orderView(order))
	return nil
}

// ownedOrder loads the order from the URL, an order of another account is reported as not found.
func (a *API) ownedOrder(req *http.Request) (model.Order, error) {
	orderID := chi.URLParam(req, "orderId")
	order, err := a.orders.Get(req.Context(), orderID)
	if err != nil {
		return model.Order{}, err
	}

	identity := identityFrom(req.Context())
	if order.Requester.AccountID != identity.AccountID || order.Requester.OrganizationID != identity.OrganizationID {
		return model.Order{}, svcErrors.NewResourceNotFoundError("order", orderID, "account")
	}
	return order, nil
}

func parseSlot(slot utctime.UTCTime, localOffset string) (time.Time, time.Duration, error) {
	if slot.IsZero() {
		return time.Time{}, 0, svcErrors.NewBadRequestError(errors.New(`"slot" is a required field`))
	}
	offset, err := timewindow.ParseOffset(localOffset)
	if err != nil {
		return time.Time{}, 0, svcErrors.NewBadRequestError(err)
	}
	return slot.Time(), offset, nil
}

func isOrderState(state model.OrderState) bool {
	return slices.Contains(orderStates, state)
}

func joinStates() string {
	out := make([]string, 0, len(orderStates))
	for _, s := range orderStates {
		out = append(out, string(s))
	}
	return strings.Join(out, " ")
}
