// Package messaging defines broker-agnostic interfaces for publishing and
// consuming messages, so the pipeline is not coupled to a specific broker.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs from message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// MessageHandler processes a received message. Returning an error signals
// processing failure and may trigger redelivery depending on the broker.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string

	// IsValid returns true if the subscription is still active.
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe creates a subscription to the specified subject.
	// Each subscriber receives all messages (fan-out).
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe creates a queue subscription. Messages are
	// load-balanced across subscribers in the same queue group.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)

	// Close releases any resources and unsubscribes all subscriptions.
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain gracefully closes the connection, letting in-flight messages finish.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}
