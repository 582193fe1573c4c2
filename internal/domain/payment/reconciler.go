package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/gateway"
)

// Outcomes reported on the callbacks counter.
const (
	outcomePaid      = "paid"
	outcomeFailed    = "failed"
	outcomePending   = "pending"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid_checksum"
	outcomeError     = "error"
)

// ReconcilerOptions carries optional collaborators for Reconciler.
type ReconcilerOptions struct {
	Gateway        string
	Cache          Cache
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Reconciler applies gateway callbacks to orders. It is the only writer of
// order payment status.
type Reconciler struct {
	signer   *gateway.Signer
	tx       TxRunner
	orders   Orders
	payments Repository
	cache    Cache
	gateway  string

	tracer    trace.Tracer
	callbacks metric.Int64Counter
	now       func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(signer *gateway.Signer, tx TxRunner, orders Orders, payments Repository, opts ReconcilerOptions) (*Reconciler, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.Gateway == "" {
		opts.Gateway = "default"
	}
	callbacks, err := opts.MeterProvider.Meter("storefront/payment").Int64Counter("payment.callbacks",
		metric.WithDescription("Gateway callbacks by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "payment.callbacks counter")
	}

	return &Reconciler{
		signer:    signer,
		tx:        tx,
		orders:    orders,
		payments:  payments,
		cache:     opts.Cache,
		gateway:   opts.Gateway,
		tracer:    opts.TracerProvider.Tracer("storefront/payment"),
		callbacks: callbacks,
		now:       time.Now,
	}, nil
}

// errDuplicate aborts the unit of work when the transaction number already
// has a SUCCESS row.
var errDuplicate = errors.New("duplicate notification")

// Reconcile processes one callback and returns where to send the customer.
// It never fails: every internal error degrades to a failure redirect that
// echoes the order id.
func (r *Reconciler) Reconcile(ctx context.Context, fields map[string]string) (red Redirect) {
	orderID := strings.TrimSpace(fields[gateway.FieldCallbackOrderID])
	txn := strings.TrimSpace(fields[gateway.FieldTransactionNumber])

	ctx, span := r.tracer.Start(ctx, "payment.Reconcile", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.txn", txn),
	))
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.String("order_id", orderID),
		zap.String("transaction_number", txn),
	)

	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("Payment callback panic", zap.Any("panic", rec), zap.Stack("stack"))
			r.count(ctx, outcomeError)
			red = Redirect{OrderID: orderID}
		}
	}()

	outcome, err := r.reconcile(ctx, lg, fields, orderID, txn)
	if err != nil {
		span.RecordError(err)
		lg.Error("Payment callback failed", zap.Error(err))
		r.count(ctx, outcomeError)
		return Redirect{OrderID: orderID}
	}

	r.count(ctx, outcome)
	return Redirect{
		Success: outcome == outcomePaid || outcome == outcomeDuplicate,
		OrderID: orderID,
	}
}

func (r *Reconciler) reconcile(ctx context.Context, lg *zap.Logger, fields map[string]string, orderID, txn string) (string, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return "", errors.Errorf("malformed order id %q", orderID)
	}

	if !r.signer.Verify(fields, checksum(fields)) {
		lg.Warn("Payment callback checksum mismatch")
		if err := r.recordInvalid(ctx, fields, orderID, txn); err != nil {
			return "", errors.Wrap(err, "record invalid checksum")
		}
		return outcomeInvalid, nil
	}

	if txn == "" {
		return "", errors.New("missing transaction number")
	}

	if r.cache != nil {
		if _, found, err := r.cache.Lookup(ctx, txn); err != nil {
			lg.Warn("Payment cache lookup failed", zap.Error(err))
		} else if found {
			lg.Info("Duplicate payment callback (cached)")
			return outcomeDuplicate, nil
		}
	}

	var outcome string
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := r.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "lock order")
		}

		// Checked under the order lock so concurrent deliveries of the same
		// notification serialize here; the unique index backs this up.
		if _, err := r.payments.FindSuccess(ctx, txn); err == nil {
			return errDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return errors.Wrap(err, "find successful payment")
		}

		p := r.newPayment(fields, orderID, txn)
		next := o.PaymentStatus

		switch status := fields[gateway.FieldStatus]; status {
		case gateway.StatusSuccess:
			if !p.Amount.Equal(o.TotalAmount) {
				lg.Warn("Payment amount mismatch",
					zap.String("paid", p.Amount.StringFixed(2)),
					zap.String("expected", o.TotalAmount.StringFixed(2)),
				)
				p.Status = StatusFailed
				p.ResponseMessage = fmt.Sprintf("amount mismatch: paid %s, expected %s",
					p.Amount.StringFixed(2), o.TotalAmount.StringFixed(2))
				if o.PaymentStatus == order.PaymentPending {
					next = order.PaymentFailed
				}
				outcome = outcomeFailed
				break
			}
			p.Status = StatusSuccess
			next = order.PaymentPaid
			outcome = outcomePaid
		case gateway.StatusPending:
			p.Status = StatusPending
			outcome = outcomePending
		default:
			p.Status = StatusFailed
			if o.PaymentStatus == order.PaymentPending {
				next = order.PaymentFailed
			}
			outcome = outcomeFailed
		}

		if err := r.payments.Create(ctx, p); err != nil {
			if errors.Is(err, ErrDuplicateSuccess) {
				return errDuplicate
			}
			return errors.Wrap(err, "create payment")
		}
		if next != o.PaymentStatus {
			if err := r.orders.UpdatePaymentStatus(ctx, o.ID, next); err != nil {
				return errors.Wrap(err, "update payment status")
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, errDuplicate):
		lg.Info("Duplicate payment callback")
		r.remember(ctx, lg, txn, orderID)
		return outcomeDuplicate, nil
	case err != nil:
		return "", err
	}

	if outcome == outcomePaid {
		r.remember(ctx, lg, txn, orderID)
	}
	lg.Info("Payment callback reconciled", zap.String("outcome", outcome))
	return outcome, nil
}

// recordInvalid appends an INVALID_CHECKSUM audit row when the claimed order
// exists. The order itself is never touched.
func (r *Reconciler) recordInvalid(ctx context.Context, fields map[string]string, orderID, txn string) error {
	if _, err := r.orders.Get(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil
		}
		return err
	}
	p := r.newPayment(fields, orderID, txn)
	p.Status = StatusInvalidChecksum
	return r.payments.Create(ctx, p)
}

func (r *Reconciler) newPayment(fields map[string]string, orderID, txn string) *Payment {
	amount, err := decimal.NewFromString(strings.TrimSpace(fields[gateway.FieldCallbackAmount]))
	if err != nil {
		amount = decimal.Zero
	}
	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v
	}
	return &Payment{
		ID:                uuid.NewString(),
		OrderID:           orderID,
		TransactionNumber: txn,
		Amount:            amount,
		Gateway:           r.gateway,
		ResponseCode:      fields[gateway.FieldResponseCode],
		ResponseMessage:   fields[gateway.FieldResponseMessage],
		Raw:               raw,
		CreatedAt:         r.now().UTC(),
	}
}

func (r *Reconciler) remember(ctx context.Context, lg *zap.Logger, txn, orderID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Remember(ctx, txn, orderID); err != nil {
		lg.Warn("Payment cache write failed", zap.Error(err))
	}
}

func (r *Reconciler) count(ctx context.Context, outcome string) {
	r.callbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func checksum(fields map[string]string) string {
	for k, v := range fields {
		if gateway.IsChecksumField(k) {
			return v
		}
	}
	return ""
}
