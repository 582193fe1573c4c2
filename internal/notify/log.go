package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.Notifier = Log{}

// Log writes notifications to the request logger. It is used when no broker
// is configured.
type Log struct{}

func (Log) Notify(ctx context.Context, n order.Notification) error {
	zctx.From(ctx).Info("Order notification",
		zap.String("audience", string(n.Audience)),
		zap.String("recipient", n.Recipient),
		zap.String("order_id", n.Order.ID),
		zap.String("total", n.Order.TotalAmount.StringFixed(2)),
		zap.String("currency", n.Order.Currency),
	)
	return nil
}
