package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// queueGroup spreads events over every running server instance.
	queueGroup = "cardscan-billing"

	handleTimeout = 10 * time.Second
)

// Connect dials the NATS server. An empty url means nats.DefaultURL.
func Connect(url, token string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("cardscan billing consumer"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

// Consumer subscribes a Handler to the billing subjects.
type Consumer struct {
	conn    *nats.Conn
	handler *Handler
	subs    []*nats.Subscription
}

func NewConsumer(conn *nats.Conn, handler *Handler) *Consumer {
	return &Consumer{conn: conn, handler: handler}
}

// Run subscribes and blocks until ctx is done, then drains the subscriptions.
func (c *Consumer) Run(ctx context.Context) error {
	routes := map[string]func(context.Context, []byte) error{
		SubjectSubscriptionUpdated: c.handler.HandleSubscriptionUpdated,
		SubjectCouponRedeemed:      c.handler.HandleCouponRedeemed,
	}
	for subject, handle := range routes {
		sub, err := c.conn.QueueSubscribe(subject, queueGroup, c.dispatch(ctx, subject, handle))
		if err != nil {
			c.unsubscribe()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
	}
	slog.Info("Billing consumer started", "subjects", len(routes), "queue", queueGroup)

	<-ctx.Done()
	c.unsubscribe()
	slog.Info("Billing consumer stopped")
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, subject string, handle func(context.Context, []byte) error) nats.MsgHandler {
	return func(m *nats.Msg) {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
		defer cancel()
		if err := handle(hctx, m.Data); err != nil {
			slog.Error("Failed to apply billing event", "subject", subject, "error", err)
		}
	}
}

func (c *Consumer) unsubscribe() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			slog.Warn("Failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil
}
