// Package events mirrors outbound classroom events onto a message broker
// so out-of-process consumers (dashboards, loggers) can follow a session.
package events

import (
	"context"
	"strings"
)

// DefaultPrefix is the subject prefix used when none is configured
const DefaultPrefix = "livepoll"

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subject returns the broker subject for an event type, e.g.
// "livepoll.poll_created".
func Subject(prefix, eventType string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + eventType
}
