// pkg/kafka/interface.go
package kafka

import "context"

// Message is a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// Handler processes one message. Returning an error does not stop the
// consumer; the message is still marked as consumed.
type Handler func(ctx context.Context, msg *Message) error

// Producer publishes records and reports broker liveness.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Ping() error
	Close() error
}

// Consumer runs a consumer-group loop until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, topics []string, handler Handler) error
	Close() error
}
