// Package publisher defines how produced posts are announced to
// downstream processing pipelines.
package publisher

import "context"

// Publisher sends a JSON-encoded payload to a named destination and
// returns the broker-assigned message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
