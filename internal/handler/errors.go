package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// badRequestError reports malformed request input.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// mapError converts domain errors to a status code and a client-safe message.
func mapError(err error) (int, string) {
	var (
		badReq     *badRequestError
		qtyErr     *cart.InvalidQuantityError
		regionErr  *catalog.InvalidRegionError
		stockErr   *order.InsufficientStockError
		missingErr *order.ItemNotFoundError
		priceErr   *order.PriceUnavailableError
		transErr   *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.As(err, &qtyErr):
		return http.StatusBadRequest, qtyErr.Error()
	case errors.As(err, &regionErr):
		return http.StatusBadRequest, regionErr.Error()
	case errors.Is(err, order.ErrEmptyCart), errors.Is(err, order.ErrInvalidAddress):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, order.ErrNotFound.Error()
	case errors.Is(err, cart.ErrItemNotInCart):
		return http.StatusNotFound, cart.ErrItemNotInCart.Error()
	case errors.As(err, &missingErr):
		return http.StatusNotFound, missingErr.Error()
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, catalog.ErrNotFound.Error()
	case errors.As(err, &stockErr):
		return http.StatusConflict, stockErr.Error()
	case errors.As(err, &transErr):
		return http.StatusConflict, transErr.Error()
	case errors.Is(err, payment.ErrNotPayable):
		return http.StatusConflict, payment.ErrNotPayable.Error()
	case errors.As(err, &priceErr):
		return http.StatusUnprocessableEntity, priceErr.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code, msg := mapError(err)
	if code >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}
	writeError(ctx, w, code, msg)
}

func writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(ctx, w, code, e.Bytes())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		zctx.From(ctx).Debug("Write response", zap.Error(err))
	}
}
