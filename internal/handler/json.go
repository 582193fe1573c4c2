package handler

import (
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

const maxBodyBytes = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("request body too large")
		}
		return nil, errors.Wrap(err, "read body")
	}
	if len(b) == 0 {
		return nil, badRequest("request body is required")
	}
	return b, nil
}

// decodeObject walks the top-level JSON object in b, calling field for each key.
// Unknown keys must be skipped by field.
func decodeObject(b []byte, field func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(b)
	if err := d.Obj(field); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

type itemRequest struct {
	ref      catalog.Ref
	quantity int
}

func decodeItem(b []byte, needQuantity bool) (itemRequest, error) {
	var (
		req    itemRequest
		hasQty bool
		err    error
	)
	if err := decodeObject(b, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			req.ref.ProductID, err = d.Str()
		case "variantId":
			req.ref.VariantID, err = optStr(d)
		case "quantity":
			hasQty = true
			req.quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return req, err
	}
	if req.ref.ProductID == "" {
		return req, badRequest("productId is required")
	}
	if needQuantity && !hasQty {
		return req, badRequest("quantity is required")
	}
	return req, nil
}

func decodeRegion(b []byte) (catalog.Region, error) {
	var raw string
	if err := decodeObject(b, func(d *jx.Decoder, key string) error {
		if key == "region" {
			v, err := d.Str()
			raw = v
			return err
		}
		return d.Skip()
	}); err != nil {
		return "", err
	}
	return catalog.ParseRegion(raw)
}

func decodePlaceOrder(b []byte) (order.PlaceOrderRequest, error) {
	var (
		req    order.PlaceOrderRequest
		region string
	)
	if err := decodeObject(b, func(d *jx.Decoder, key string) error {
		switch key {
		case "shippingAddress":
			return decodeAddress(d, &req.ShippingAddress)
		case "region":
			v, err := optStr(d)
			region = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return req, err
	}
	if region != "" {
		r, err := catalog.ParseRegion(region)
		if err != nil {
			return req, err
		}
		req.Region = r
	}
	return req, nil
}

func decodeAddress(d *jx.Decoder, a *order.ShippingAddress) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "name":
			dst = &a.Name
		case "phone":
			dst = &a.Phone
		case "line1":
			dst = &a.Line1
		case "line2":
			dst = &a.Line2
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "postalCode":
			dst = &a.PostalCode
		case "country":
			dst = &a.Country
		default:
			return d.Skip()
		}
		v, err := optStr(d)
		*dst = v
		return err
	})
}

func decodeStatus(b []byte) (order.Status, error) {
	var raw string
	if err := decodeObject(b, func(d *jx.Decoder, key string) error {
		if key == "status" {
			v, err := d.Str()
			raw = v
			return err
		}
		return d.Skip()
	}); err != nil {
		return "", err
	}
	s, ok := order.ParseStatus(raw)
	if !ok {
		return "", badRequest("invalid status " + strconv.Quote(raw))
	}
	return s, nil
}

func encodeTime(e *jx.Encoder, t time.Time) {
	if t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("userId")
	e.Str(c.UserID)
	e.FieldStart("region")
	e.Str(string(c.Region))
	e.FieldStart("currency")
	e.Str(c.Currency)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range c.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		if it.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(it.VariantID)
		}
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("updatedAt")
	encodeTime(e, c.UpdatedAt)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("customerEmail")
	e.Str(o.CustomerEmail)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		if l.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(l.VariantID)
		}
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("image")
		e.Str(l.Image)
		e.FieldStart("variantLabel")
		e.Str(l.VariantLabel)
		e.FieldStart("price")
		e.Str(l.Price.StringFixed(2))
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("totalAmount")
	e.Str(o.TotalAmount.StringFixed(2))
	e.FieldStart("region")
	e.Str(string(o.Region))
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("shippingAddress")
	encodeAddress(e, o.ShippingAddress)
	e.FieldStart("paymentStatus")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.ShippingAddress) {
	e.ObjStart()
	for _, f := range [...]struct{ k, v string }{
		{"name", a.Name},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"line2", a.Line2},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		if f.v == "" && (f.k == "line2" || f.k == "state") {
			continue
		}
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
}

func encodePaymentRequest(e *jx.Encoder, req *payment.Request) {
	e.ObjStart()
	e.FieldStart("url")
	e.Str(req.URL)
	e.FieldStart("method")
	e.Str(http.MethodPost)
	e.FieldStart("fields")
	e.ObjStart()
	for _, k := range sortedKeys(req.Fields) {
		e.FieldStart(k)
		e.Str(req.Fields[k])
	}
	e.ObjEnd()
	e.ObjEnd()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
