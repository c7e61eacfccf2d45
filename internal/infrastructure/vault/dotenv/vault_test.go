package dotenv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/core/vault"
	"github.com/unifiedui/chat-gateway/internal/infrastructure/vault/dotenv"
)

func writeSecrets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVault_ReadsSecretsFile(t *testing.T) {
	// Arrange
	path := writeSecrets(t, "GATEWAY_TEST_GEMINI=from-file\n# comment\nGATEWAY_TEST_QUOTED=\"a b\"\n")
	v, err := dotenv.NewVault(path)
	require.NoError(t, err)

	// Act
	gemini, err := v.GetSecret(context.Background(), "dotenv://GATEWAY_TEST_GEMINI")
	require.NoError(t, err)
	quoted, err := v.GetSecret(context.Background(), "GATEWAY_TEST_QUOTED")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "from-file", gemini)
	assert.Equal(t, "a b", quoted)
}

func TestVault_EnvironmentWins(t *testing.T) {
	// Arrange
	t.Setenv("GATEWAY_TEST_KEY", "from-env")
	v, err := dotenv.NewVault(writeSecrets(t, "GATEWAY_TEST_KEY=from-file\n"))
	require.NoError(t, err)

	// Act
	value, err := v.GetSecret(context.Background(), "dotenv://GATEWAY_TEST_KEY")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestVault_LaterFileOverrides(t *testing.T) {
	first := writeSecrets(t, "GATEWAY_TEST_ORDER=first\n")
	second := writeSecrets(t, "GATEWAY_TEST_ORDER=second\n")
	v, err := dotenv.NewVault(first, second)
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), "dotenv://GATEWAY_TEST_ORDER")

	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestVault_MissingFileIsSkipped(t *testing.T) {
	v, err := dotenv.NewVault(filepath.Join(t.TempDir(), "absent.env"), "")
	require.NoError(t, err)

	_, err = v.GetSecret(context.Background(), "dotenv://GATEWAY_MISSING_KEY")

	assert.ErrorIs(t, err, vault.ErrSecretNotFound)
}

func TestVault_RejectsOtherSchemes(t *testing.T) {
	v, err := dotenv.NewVault()
	require.NoError(t, err)

	_, err = v.GetSecret(context.Background(), "vault://kv/gemini")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vault.ErrSecretNotFound)

	_, err = v.GetSecret(context.Background(), "dotenv://")
	assert.ErrorIs(t, err, vault.ErrSecretNotFound)
}
