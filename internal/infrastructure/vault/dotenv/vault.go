// Package dotenv resolves "dotenv://NAME" references from the process
// environment, falling back to a secrets file kept out of the main .env.
package dotenv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/unifiedui/chat-gateway/internal/core/vault"
)

// Scheme is the reference prefix this vault understands.
const Scheme = "dotenv://"

// Vault is read-only. The secrets file is read once at construction.
type Vault struct {
	file map[string]string
}

// NewVault loads the given secrets files. Missing files are skipped; later
// files override earlier ones.
func NewVault(files ...string) (*Vault, error) {
	v := &Vault{file: map[string]string{}}
	for _, path := range files {
		if path == "" {
			continue
		}
		values, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
		}
		for k, val := range values {
			v.file[k] = val
		}
	}
	return v, nil
}

// GetSecret resolves uri. A bare name is accepted as if it carried the
// scheme; any other scheme is an error. The environment wins over the file.
func (v *Vault) GetSecret(_ context.Context, uri string) (string, error) {
	name, ok := strings.CutPrefix(uri, Scheme)
	if !ok && strings.Contains(uri, "://") {
		return "", fmt.Errorf("unsupported secret reference %q", uri)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty reference", vault.ErrSecretNotFound)
	}

	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	if value := v.file[name]; value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", vault.ErrSecretNotFound, name)
}

func (v *Vault) Close() error {
	return nil
}
