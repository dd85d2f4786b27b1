package broker

import "context"

// MessageQueue carries serialized bulk-reading batches from the ingest
// endpoint to the worker pool.
type MessageQueue interface {
	Publish(ctx context.Context, data []byte) error
	Consume(ctx context.Context, handler func([]byte) error) error
	Close() error
}
