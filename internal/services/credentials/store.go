// Package credentials persists per-identity network credential bundles.
//
// Layout: <root>/<identity>/creds.json. Bundles are sealed with the
// configured encryptor; plaintext JSON bundles are still accepted on read.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/pkg/encryption"
)

const (
	// FileName is the bundle file inside an identity directory.
	FileName = "creds.json"
	// LegacyIdentity receives a bundle found directly under the root.
	LegacyIdentity = "default"
)

// Store reads and writes credential bundles.
type Store interface {
	Save(identity string, bundle []byte) error
	Load(identity string) ([]byte, error)
	Exists(identity string) bool
	Delete(identity string) error
	// Identities lists identity directories that contain a bundle.
	Identities() ([]string, error)
	// MigrateLegacy moves <root>/creds.json into <root>/default/.
	MigrateLegacy() (bool, error)
}

// Config holds the dependencies for the credential store.
type Config struct {
	Root      string
	Encryptor encryption.Encryptor
}

type store struct {
	root      string
	encryptor encryption.Encryptor
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("sessions directory is required")
	}
	enc := cfg.Encryptor
	if enc == nil {
		enc = encryption.NewNoOpEncryptor()
	}
	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &store{root: cfg.Root, encryptor: enc}, nil
}

// NormalizeIdentity strips everything but digits from a phone number.
func NormalizeIdentity(raw string) (string, error) {
	var sb strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: %q contains no digits", domainerrors.ErrInvalidIdentity, raw)
	}
	return sb.String(), nil
}

// ValidateBundle checks that bundle is a JSON object.
func ValidateBundle(bundle []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(bundle, &obj); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidCredentials, err)
	}
	if obj == nil {
		return fmt.Errorf("%w: bundle must be a JSON object", domainerrors.ErrInvalidCredentials)
	}
	return nil
}

func validIdentity(identity string) error {
	if identity == "" || identity == "." || identity == ".." ||
		strings.ContainsAny(identity, `/\`) || filepath.Base(identity) != identity {
		return fmt.Errorf("%w: %q", domainerrors.ErrInvalidIdentity, identity)
	}
	return nil
}

func (s *store) path(identity string) string {
	return filepath.Join(s.root, identity, FileName)
}

func (s *store) Save(identity string, bundle []byte) error {
	if err := validIdentity(identity); err != nil {
		return err
	}
	sealed, err := s.encryptor.Seal(bundle, []byte(identity))
	if err != nil {
		return fmt.Errorf("failed to seal credentials: %w", err)
	}
	dir := filepath.Join(s.root, identity)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	return writeFileAtomic(s.path(identity), sealed)
}

func (s *store) Load(identity string) ([]byte, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	bundle, err := s.encryptor.Open(data, []byte(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials: %w", err)
	}
	return bundle, nil
}

func (s *store) Exists(identity string) bool {
	if validIdentity(identity) != nil {
		return false
	}
	info, err := os.Stat(s.path(identity))
	return err == nil && info.Mode().IsRegular()
}

func (s *store) Delete(identity string) error {
	if err := validIdentity(identity); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, identity)); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func (s *store) Identities() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if s.Exists(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *store) MigrateLegacy() (bool, error) {
	legacy := filepath.Join(s.root, FileName)
	info, err := os.Stat(legacy)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat legacy credentials: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if s.Exists(LegacyIdentity) {
		log.Warn().Str("path", legacy).Msg("legacy credentials found but default identity already exists, leaving in place")
		return false, nil
	}
	if err := os.MkdirAll(filepath.Join(s.root, LegacyIdentity), 0o700); err != nil {
		return false, fmt.Errorf("failed to create default identity directory: %w", err)
	}
	if err := os.Rename(legacy, s.path(LegacyIdentity)); err != nil {
		return false, fmt.Errorf("failed to migrate legacy credentials: %w", err)
	}
	log.Info().Str("identity", LegacyIdentity).Msg("migrated legacy credentials")
	return true, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".creds-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move credentials into place: %w", err)
	}
	return nil
}
