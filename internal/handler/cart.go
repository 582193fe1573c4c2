package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
)

// GetCart returns the caller's cart. A user without a cart gets an empty one.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.carts.Get(ctx, mustIdentity(ctx).UserID)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// AddCartItem merges {productId, variantId, quantity} into the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.itemRequest(w, r, true)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	c, err := h.carts.AddItem(ctx, mustIdentity(ctx).UserID, req.ref, req.quantity)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// UpdateCartItem replaces the quantity of an existing line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.itemRequest(w, r, true)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	c, err := h.carts.UpdateItem(ctx, mustIdentity(ctx).UserID, req.ref, req.quantity)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// RemoveCartItem deletes a line identified by {productId, variantId}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.itemRequest(w, r, false)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	c, err := h.carts.RemoveItem(ctx, mustIdentity(ctx).UserID, req.ref)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// SetCartRegion switches pricing between IN and OUT.
func (h *Handler) SetCartRegion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := readBody(w, r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	region, err := decodeRegion(b)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	c, err := h.carts.SetRegion(ctx, mustIdentity(ctx).UserID, region)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

func (h *Handler) itemRequest(w http.ResponseWriter, r *http.Request, needQuantity bool) (itemRequest, error) {
	b, err := readBody(w, r)
	if err != nil {
		return itemRequest{}, err
	}
	return decodeItem(b, needQuantity)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, code int, c *cart.Cart) {
	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(r.Context(), w, code, e.Bytes())
}
