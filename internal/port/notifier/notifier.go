// Package notifier defines the chat delivery port.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier has no access credential.
// Routing still runs; only delivery is skipped.
var ErrNotConfigured = errors.New("notifier: not configured")

// Message is one chat post.
type Message struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Result is what the chat service reported for a post.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Notifier is the port interface for posting messages to a chat channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack").
	Name() string

	// Send posts a message. A non-nil error means the post did not happen;
	// a nil error with Result.OK == false means the service rejected it.
	Send(ctx context.Context, msg Message) (Result, error)
}
