package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InitiatePayment returns the signed form the browser posts to the gateway.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.payments.Build(ctx, mustIdentity(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	var e jx.Encoder
	encodePaymentRequest(&e, req)
	writeJSON(ctx, w, http.StatusOK, e.Bytes())
}

// PaymentCallback receives the gateway's form post and always answers with a
// 303 to the storefront, whatever the outcome.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		zctx.From(ctx).Warn("Malformed payment callback", zap.Error(err))
	}
	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	red := h.callbacks.Reconcile(ctx, fields)
	http.Redirect(w, r, red.Location(h.storefrontURL), http.StatusSeeOther)
}
