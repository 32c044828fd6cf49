package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels published by the dispatch pipeline. Dashboard consumers subscribe
// to history to compute success rates without polling the database.
const (
	ChannelHistory  = "message.history"
	ChannelRuleFire = "rule.fired"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
