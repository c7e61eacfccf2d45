package main

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := run(t, "keygen")

	require.NoError(t, err)
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestHandlersValidate(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), []byte("name: ping\nreply: pong\n"), 0o644))

	// Act
	out, err := run(t, "handlers", "validate", dir)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "ok   ping")
	assert.Contains(t, out, "1 handler(s) valid")
}

func TestHandlersValidate_ReportsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), []byte("name: ping\nreply: pong\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: empty\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	out, err := run(t, "handlers", "validate", dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3")
	assert.Contains(t, out, "FAIL empty")
	assert.Contains(t, out, "FAIL broken")
	assert.Contains(t, out, "ok   ping")
}

func TestHandlersValidate_MissingDir(t *testing.T) {
	_, err := run(t, "handlers", "validate", filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
}
