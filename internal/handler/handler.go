// Package handler exposes the storefront over HTTP using a chi router and
// go-faster/jx for JSON.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Carts is the subset of cart.Service used by the handlers.
type Carts interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, ref catalog.Ref, quantity int) (*cart.Cart, error)
	UpdateItem(ctx context.Context, userID string, ref catalog.Ref, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID string, ref catalog.Ref) (*cart.Cart, error)
	SetRegion(ctx context.Context, userID string, region catalog.Region) (*cart.Cart, error)
}

// Orders is the subset of order.Service used by the handlers.
type Orders interface {
	PlaceOrder(ctx context.Context, id auth.Identity, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, id auth.Identity, orderID string) (*order.Order, error)
	List(ctx context.Context, id auth.Identity) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id auth.Identity, orderID string, next order.Status) (*order.Order, error)
}

// Payments builds signed gateway requests.
type Payments interface {
	Build(ctx context.Context, id auth.Identity, orderID string) (*payment.Request, error)
}

// Callbacks reconciles gateway callbacks into redirects.
type Callbacks interface {
	Reconcile(ctx context.Context, fields map[string]string) payment.Redirect
}

// Config holds non-dependency handler settings.
type Config struct {
	// StorefrontURL is the base the callback redirects point at.
	StorefrontURL string
	// RateLimit, when set, guards the /api routes. The payment callback is
	// never limited: the gateway must always receive a redirect.
	RateLimit func(http.Handler) http.Handler
}

// Handler serves the storefront API.
type Handler struct {
	carts         Carts
	orders        Orders
	payments      Payments
	callbacks     Callbacks
	security      *Security
	storefrontURL string
	rateLimit     func(http.Handler) http.Handler
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, security *Security, carts Carts, orders Orders, payments Payments, callbacks Callbacks) *Handler {
	return &Handler{
		carts:         carts,
		orders:        orders,
		payments:      payments,
		callbacks:     callbacks,
		security:      security,
		storefrontURL: cfg.StorefrontURL,
		rateLimit:     cfg.RateLimit,
	}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/payment/callback", h.PaymentCallback)

	r.Route("/api", func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Use(h.security.Authenticate)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Put("/region", h.SetCartRegion)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items", h.UpdateCartItem)
			r.Delete("/items", h.RemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/payment", h.InitiatePayment)
		})

		r.Patch("/admin/orders/{id}/status", h.UpdateOrderStatus)
	})
}

// Router returns a chi router with the API and any extra routes mounted.
func (h *Handler) Router(extra func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
	})
	if extra != nil {
		extra(r)
	}
	h.Routes(r)
	return r
}
