package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FeedExchange carries full order-set snapshots, routed per truck with
// key "feed.<truck_id>".
const FeedExchange = "orders_feed"

type Client struct {
	conn *amqp.Connection
}

func Dial(host string, port int, user, pass string) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, pass, host, port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close()
}

// Channel opens a fresh channel; consumers and publishers must not share one.
func (c *Client) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// DeclareFeed declares the snapshot exchange idempotently.
func (c *Client) DeclareFeed() error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(FeedExchange, "topic", true, false, false, false, nil)
}
