package natsbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

type Client struct {
	conn *nats.Conn
}

func NewClient(server *Server) (*Client, error) {
	return NewClientFromURL(server.ClientURL())
}

func NewClientFromURL(url string) (*Client, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish sends payload with the given headers. Header keys are stored by
// direct map assignment so they reach subscribers byte for byte; nats.Header
// Set/Get would canonicalize them MIME-style.
func (c *Client) Publish(topic string, payload []byte, headers map[string]string) error {
	return c.publish(topic, "", payload, headers)
}

// PublishRequest is Publish with a reply subject, so receivers can answer
// without knowing the sender's topic layout.
func (c *Client) PublishRequest(topic, reply string, payload []byte, headers map[string]string) error {
	return c.publish(topic, reply, payload, headers)
}

func (c *Client) publish(topic, reply string, payload []byte, headers map[string]string) error {
	msg := &nats.Msg{
		Subject: topic,
		Reply:   reply,
		Data:    payload,
	}
	if len(headers) > 0 {
		msg.Header = make(nats.Header, len(headers))
		for key, value := range headers {
			msg.Header[key] = []string{value}
		}
	}
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, handler)
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

func (c *Client) Close() {
	c.conn.Close()
}

// HeaderValue reads a header set by Publish, bypassing canonicalization.
func HeaderValue(header nats.Header, key string) string {
	if values := header[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
