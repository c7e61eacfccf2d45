// Package vault resolves secret references such as the AI provider keys.
package vault

import (
	"context"
	"errors"
)

// Type selects the vault backend.
type Type string

// TypeDotEnv reads the process environment and an optional secrets file.
const TypeDotEnv Type = "dotenv"

// ErrSecretNotFound is returned when a reference resolves to nothing.
var ErrSecretNotFound = errors.New("secret not found")

// Vault resolves secret references of the form "<scheme>://<name>".
type Vault interface {
	GetSecret(ctx context.Context, uri string) (string, error)
	Close() error
}
