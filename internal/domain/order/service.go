package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/stock"
)

// TxRunner runs fn inside one atomic unit of work carried by the context.
// If fn returns an error, every write made through ctx is rolled back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlaceOrderRequest holds the checkout input. An empty Region falls back to
// the region stored on the cart.
type PlaceOrderRequest struct {
	ShippingAddress ShippingAddress
	Region          catalog.Region
}

// Options carries optional collaborators for Service.
type Options struct {
	Notifier       Notifier
	Notify         NotifyConfig
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service coordinates order placement and order reads.
type Service struct {
	tx      TxRunner
	carts   cart.Repository
	catalog catalog.Repository
	stock   stock.Ledger
	orders  Repository

	notifier  Notifier
	notifyCfg NotifyConfig
	tracer    trace.Tracer
	placed    metric.Int64Counter
	rejected  metric.Int64Counter
	now       func() time.Time
}

// NewService creates an order Service.
func NewService(
	tx TxRunner,
	carts cart.Repository,
	cat catalog.Repository,
	ledger stock.Ledger,
	orders Repository,
	opts Options,
) (*Service, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	meter := opts.MeterProvider.Meter("storefront/order")

	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	rejected, err := meter.Int64Counter("orders.rejected",
		metric.WithDescription("Checkouts aborted before commit"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.rejected counter")
	}

	return &Service{
		tx:        tx,
		carts:     carts,
		catalog:   cat,
		stock:     ledger,
		orders:    orders,
		notifier:  opts.Notifier,
		notifyCfg: opts.Notify,
		tracer:    opts.TracerProvider.Tracer("storefront/order"),
		placed:    placed,
		rejected:  rejected,
		now:       time.Now,
	}, nil
}

// PlaceOrder turns the caller's cart into an order in one atomic unit: lock
// the cart, assemble priced lines, reserve stock for every line, insert the
// order, and clear the cart. Any failure aborts the whole unit. Notifications
// go out only after commit.
func (s *Service) PlaceOrder(ctx context.Context, id auth.Identity, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.String("user.id", id.UserID)))
	defer span.End()

	if err := validateAddress(req.ShippingAddress); err != nil {
		return nil, err
	}

	var (
		placed   *Order
		cartSize int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetForUpdate(ctx, id.UserID)
		if errors.Is(err, cart.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return &TransactionError{Op: "lock cart", Err: err}
		}
		cartSize = len(c.Items)
		if cartSize == 0 {
			return ErrEmptyCart
		}

		resolved, err := s.catalog.Resolve(ctx, c.Refs())
		if err != nil {
			return &TransactionError{Op: "resolve catalog", Err: err}
		}

		region := req.Region
		if region == "" {
			region = c.Region
		}
		draft, err := Assemble(c, region, resolved)
		if err != nil {
			return err
		}

		for _, line := range draft.Lines {
			if err := s.reserve(ctx, line); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          id.UserID,
			CustomerEmail:   id.Email,
			Lines:           draft.Lines,
			TotalAmount:     draft.Total,
			Region:          draft.Region,
			Currency:        draft.Currency,
			ShippingAddress: req.ShippingAddress,
			PaymentStatus:   PaymentPending,
			Status:          StatusPlaced,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return &TransactionError{Op: "create order", Err: err}
		}
		if err := s.carts.Clear(ctx, id.UserID); err != nil {
			return &TransactionError{Op: "clear cart", Err: err}
		}

		placed = o
		return nil
	})
	if err != nil {
		s.rejected.Add(ctx, 1)
		span.RecordError(err)

		var txErr *TransactionError
		if errors.As(err, &txErr) {
			zctx.From(ctx).Error("Order transaction aborted",
				zap.String("user_id", id.UserID),
				zap.String("region", string(req.Region)),
				zap.Int("cart_items", cartSize),
				zap.String("op", txErr.Op),
				zap.Error(txErr.Err),
			)
		}
		return nil, err
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("region", string(placed.Region))))
	span.SetAttributes(attribute.String("order.id", placed.ID))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("user_id", id.UserID),
		zap.String("total", placed.TotalAmount.StringFixed(2)),
		zap.String("currency", placed.Currency),
	)

	s.dispatch(ctx, placed)
	return placed, nil
}

func (s *Service) reserve(ctx context.Context, line Line) error {
	err := s.stock.Reserve(ctx, line.Ref(), line.Quantity)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stock.ErrInsufficientStock):
		// Stock moved between the assembly read and the decrement.
		return &InsufficientStockError{
			Item:      displayName(line),
			Ref:       line.Ref(),
			Requested: line.Quantity,
			Available: -1,
		}
	case errors.Is(err, stock.ErrUnknownTarget):
		return &ItemNotFoundError{Ref: line.Ref()}
	default:
		return &TransactionError{Op: "reserve stock " + line.Ref().String(), Err: err}
	}
}

// Get returns one order. Non-admin callers only see their own orders; an
// order owned by someone else is reported as not found.
func (s *Service) Get(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}

	var (
		o   *Order
		err error
	)
	if id.IsAdmin() {
		o, err = s.orders.Get(ctx, orderID)
	} else {
		o, err = s.orders.GetForUser(ctx, orderID, id.UserID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// List returns the caller's orders, newest first.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]Order, error) {
	orders, err := s.orders.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus moves an order along its fulfilment lifecycle. Only admins may
// call it. Cancelling returns the reserved stock in the same unit of work.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, orderID string, next Status) (*Order, error) {
	if !id.IsAdmin() {
		return nil, auth.ErrForbidden
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}

	var updated *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return &TransactionError{Op: "lock order", Err: err}
		}
		if !o.Status.CanTransition(next) {
			return &InvalidTransitionError{From: o.Status, To: next}
		}

		if next == StatusCancelled {
			for _, line := range o.Lines {
				if err := s.stock.Release(ctx, line.Ref(), line.Quantity); err != nil {
					return &TransactionError{Op: "release stock " + line.Ref().String(), Err: err}
				}
			}
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, next); err != nil {
			return &TransactionError{Op: "update order status", Err: err}
		}

		o.Status = next
		o.UpdatedAt = s.now().UTC()
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("by", id.UserID),
	)
	return updated, nil
}

func validateAddress(a ShippingAddress) error {
	required := []string{a.Name, a.Phone, a.Line1, a.City, a.PostalCode, a.Country}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return ErrInvalidAddress
		}
	}
	return nil
}
