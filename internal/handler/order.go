package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// PlaceOrder checks out the caller's cart.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := readBody(w, r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	req, err := decodePlaceOrder(b)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	o, err := h.orders.PlaceOrder(ctx, mustIdentity(ctx), req)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+o.ID)
	h.writeOrder(w, r, http.StatusCreated, o)
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.orders.List(ctx, mustIdentity(ctx))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(ctx, w, http.StatusOK, e.Bytes())
}

// GetOrder returns one order the caller owns, or any order for admins.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.orders.Get(ctx, mustIdentity(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

// UpdateOrderStatus moves an order along its fulfilment lifecycle.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := readBody(w, r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	next, err := decodeStatus(b)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	o, err := h.orders.UpdateStatus(ctx, mustIdentity(ctx), chi.URLParam(r, "id"), next)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, code int, o *order.Order) {
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(r.Context(), w, code, e.Bytes())
}
