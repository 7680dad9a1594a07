package nats

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps the core NATS connection used for cross-service
// subscriptions (account deletions and the like). Domain events go
// out through the JetStream publisher in services; this connection
// only listens.
type Client struct {
	Conn *nats.Conn
}

func NewClient(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("transfer-service-consumer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{
		Conn: conn,
	}, nil
}

// SubscribeAll registers every route once during startup.
func (c *Client) SubscribeAll(routes map[string]nats.MsgHandler) error {
	for subject, handler := range routes {
		if _, err := c.Conn.Subscribe(subject, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		log.Printf("[NATS] Subscribed to: %s", subject)
	}
	return nil
}
