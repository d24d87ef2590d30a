package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsSink publishes events on core NATS subjects.
type NatsSink struct {
	nc *nats.Conn
}

func NewNatsSink(url string) (*NatsSink, error) {
	if url == "" {
		return nil, fmt.Errorf("nats sink requires a url")
	}
	nc, err := nats.Connect(url,
		nats.Name("publishflow"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsSink{nc: nc}, nil
}

// Publish sends value to topic with key stored as a header.
func (n *NatsSink) Publish(topic, key string, value []byte) error {
	msg := &nats.Msg{
		Subject: topic,
		Data:    value,
		Header:  nats.Header{"key": []string{key}},
	}
	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (n *NatsSink) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
