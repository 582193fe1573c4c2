package notify

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

func testNotification() order.Notification {
	return order.Notification{
		Audience:  order.AudienceCustomer,
		Recipient: "buyer@example.com",
		Order: &order.Order{
			ID:          "8d7c0f3e-6b7a-4a43-9a3c-2d5b6f0e1a11",
			UserID:      "u1",
			TotalAmount: decimal.RequireFromString("45"),
			Currency:    "INR",
			Lines: []order.Line{
				{Name: "Mug", VariantLabel: "Standard", Price: decimal.NewFromInt(10), Quantity: 2},
			},
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestKafka_Notify(t *testing.T) {
	p := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	n := testNotification()

	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "orders" {
			return errors.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != n.Order.ID {
			return errors.Errorf("unexpected key %q", key)
		}
		return nil
	})

	k := NewKafka(p, "orders")
	require.NoError(t, k.Notify(context.Background(), n))
	require.NoError(t, k.Close())
}

func TestKafka_NotifyError(t *testing.T) {
	p := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafka(p, "orders")
	err := k.Notify(context.Background(), testNotification())
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}

func TestEncodeEvent(t *testing.T) {
	raw := encodeEvent(testNotification())

	d := jx.DecodeBytes(raw)
	got := map[string]string{}
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		got[key] = v
		return err
	}))

	assert.Equal(t, "order.placed", got["type"])
	assert.Equal(t, "customer", got["audience"])
	assert.Equal(t, "45.00", got["total"])
	assert.Equal(t, "2024-05-01T10:00:00Z", got["createdAt"])
}
