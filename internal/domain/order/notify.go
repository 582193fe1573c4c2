package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Audience selects who a notification is addressed to.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
)

// Notification is a one-way message about a placed order.
type Notification struct {
	Audience  Audience
	Recipient string
	Order     *Order
}

// Notifier delivers notifications. The order flow never waits on or reacts
// to its outcome beyond logging.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifyConfig controls post-commit notifications.
type NotifyConfig struct {
	AdminEmail string
	Timeout    time.Duration
}

// dispatch sends the customer and admin notifications in the background. It
// detaches from the request context so a finished request does not cancel
// delivery, and bounds delivery by the configured timeout.
func (s *Service) dispatch(ctx context.Context, o *Order) {
	if s.notifier == nil {
		return
	}

	var batch []Notification
	if o.CustomerEmail != "" {
		batch = append(batch, Notification{Audience: AudienceCustomer, Recipient: o.CustomerEmail, Order: o})
	}
	if s.notifyCfg.AdminEmail != "" {
		batch = append(batch, Notification{Audience: AudienceAdmin, Recipient: s.notifyCfg.AdminEmail, Order: o})
	}
	if len(batch) == 0 {
		return
	}

	timeout := s.notifyCfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	go func() {
		defer cancel()
		lg := zctx.From(bg)

		g, gctx := errgroup.WithContext(bg)
		for _, n := range batch {
			g.Go(func() error {
				if err := s.notifier.Notify(gctx, n); err != nil {
					lg.Warn("Order notification failed",
						zap.String("order_id", o.ID),
						zap.String("audience", string(n.Audience)),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}
