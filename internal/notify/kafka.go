// Package notify delivers order notifications.
package notify

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.Notifier = (*Kafka)(nil)

// Kafka publishes one event per notification. Downstream consumers own
// rendering and email delivery.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka wraps an existing producer.
func NewKafka(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

// NewSyncProducer dials brokers with acks from all in-sync replicas.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Timeout = 5 * time.Second

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}

// Notify publishes n keyed by order id so events for one order stay ordered.
func (k *Kafka) Notify(ctx context.Context, n order.Notification) error {
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(n.Order.ID),
		Value: sarama.ByteEncoder(encodeEvent(n)),
	}

	carrier := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, "send message")
	}

	fields := []zap.Field{
		zap.String("topic", k.topic),
		zap.String("order_id", n.Order.ID),
		zap.String("audience", string(n.Audience)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	zctx.From(ctx).Debug("Order event published", fields...)
	return nil
}

// Close shuts the producer down.
func (k *Kafka) Close() error {
	return k.producer.Close()
}

func encodeEvent(n order.Notification) []byte {
	o := n.Order
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str("order.placed")
	e.FieldStart("audience")
	e.Str(string(n.Audience))
	e.FieldStart("recipient")
	e.Str(n.Recipient)
	e.FieldStart("orderId")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("total")
	e.Str(o.TotalAmount.StringFixed(2))
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
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
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}

// headerCarrier adapts Kafka record headers to otel propagation.
type headerCarrier []sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
