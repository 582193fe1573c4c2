package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/gateway"
)

// GatewayConfig describes the merchant account used for outbound requests.
type GatewayConfig struct {
	MerchantID  string
	Website     string
	URL         string
	CallbackURL string
}

// Request is a signed form the browser posts to the gateway.
type Request struct {
	URL    string
	Fields map[string]string
}

// Initiator builds signed payment requests for pending orders.
type Initiator struct {
	cfg    GatewayConfig
	signer *gateway.Signer
	orders Orders
	now    func() time.Time
}

// NewInitiator creates an Initiator.
func NewInitiator(cfg GatewayConfig, signer *gateway.Signer, orders Orders) *Initiator {
	return &Initiator{cfg: cfg, signer: signer, orders: orders, now: time.Now}
}

// optionalFields are left out of the form when the order has no value for them.
var optionalFields = []string{gateway.FieldEmail, gateway.FieldMobile}

// Build returns the signed gateway form for orderID. Only the owner may pay,
// and only while the order is still awaiting payment (PENDING or a retry
// after FAILED).
func (i *Initiator) Build(ctx context.Context, id auth.Identity, orderID string) (*Request, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}
	o, err := i.orders.GetForUser(ctx, orderID, id.UserID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrNotPayable
	}
	if o.Status == order.StatusCancelled {
		return nil, ErrNotPayable
	}

	email := o.CustomerEmail
	if email == "" {
		email = id.Email
	}
	fields := map[string]string{
		gateway.FieldMerchantID:     i.cfg.MerchantID,
		gateway.FieldWebsite:        i.cfg.Website,
		gateway.FieldOrderID:        o.ID,
		gateway.FieldAmount:         o.TotalAmount.StringFixed(2),
		gateway.FieldEmail:          email,
		gateway.FieldCurrency:       o.Currency,
		gateway.FieldMobile:         o.ShippingAddress.Phone,
		gateway.FieldCallbackURL:    i.cfg.CallbackURL,
		gateway.FieldTxnDate:        i.now().UTC().Format(gateway.TxnDateLayout),
		gateway.FieldProductDetails: productDetails(o.Lines),
	}
	for _, k := range optionalFields {
		if fields[k] == "" {
			delete(fields, k)
		}
	}
	fields[gateway.FieldChecksum] = i.signer.Sign(fields)

	return &Request{URL: i.cfg.URL, Fields: fields}, nil
}

// productDetails renders the informational line summary sent alongside the
// signed fields.
func productDetails(lines []order.Line) string {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("variant")
		e.Str(l.VariantLabel)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("price")
		e.Str(l.Price.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.String()
}
