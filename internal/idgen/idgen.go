// Package idgen generates short URL-safe identifiers for connections and
// chat messages.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size     = 12
)

// Prefixes for the id families
const (
	ConnectionPrefix = "conn_"
	MessagePrefix    = "msg_"
)

// New returns prefix followed by a random nanoid
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Connection returns a fresh connection handle
func Connection() (string, error) {
	return New(ConnectionPrefix)
}

// Message returns a fresh chat message id
func Message() (string, error) {
	return New(MessagePrefix)
}
