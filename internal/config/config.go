// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	DocDB     DocDBConfig
	Vault     VaultConfig
	Gateway   GatewayConfig
	Transport TransportConfig
	AI        AIConfig
	Memory    MemoryConfig
	Log       LogConfig
}

// ServerConfig holds control-plane server configuration.
type ServerConfig struct {
	Host          string
	Port          int
	GinMode       string
	OperatorToken string
	CORSOrigins   []string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Type      string
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

// DocDBConfig holds document database configuration.
type DocDBConfig struct {
	Type     string
	URI      string
	Database string
}

// VaultConfig holds vault configuration.
type VaultConfig struct {
	Type          string
	SecretsFile   string // env-format file consulted after the environment
	EncryptionKey string
}

// GatewayConfig holds session and dispatch configuration.
type GatewayConfig struct {
	// Prefix is the single character that marks a command.
	Prefix string
	// OwnerID is the privileged identifier used when the settings document has none.
	OwnerID           string
	SessionsDir       string
	HandlersDir       string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PairingDelay      time.Duration
	PairingWait       time.Duration
	PairingCodeTTL    time.Duration
	HandlerTimeout    time.Duration
	SendTimeout       time.Duration
	DispatchWorkers   int
	DispatchBacklog   int
	RestoreParallel   int
}

// TransportConfig holds messaging-network bridge configuration.
type TransportConfig struct {
	Type      string
	BridgeURL string
}

// AIConfig holds AI collaborator configuration.
type AIConfig struct {
	// GeminiKeyURI and AnthropicKeyURI are vault references for provider credentials.
	GeminiKeyURI    string
	AnthropicKeyURI string
	Models          []string
	Timeout         time.Duration
	HistoryTurns    int
	PersonaName     string
	MaxOutputTokens int
}

// MemoryConfig holds conversation memory configuration.
type MemoryConfig struct {
	Capacity      int
	RetentionDays int
	SweepSchedule string
}

// Retention returns the retention window as a duration.
func (c MemoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultModels is the ordered fallback list used when AI_MODELS is unset.
var DefaultModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          getEnvAsInt("SERVER_PORT", 8080),
			GinMode:       getEnv("GIN_MODE", "release"),
			OperatorToken: getEnv("OPERATOR_TOKEN", ""),
			CORSOrigins:   getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Cache: CacheConfig{
			Type:      getEnv("CACHE_TYPE", "redis"),
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", ""),
		},
		DocDB: DocDBConfig{
			Type:     getEnv("DOCDB_TYPE", "mongodb"),
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "chat_gateway"),
		},
		Vault: VaultConfig{
			Type:          getEnv("VAULT_TYPE", "dotenv"),
			SecretsFile:   getEnv("VAULT_SECRETS_FILE", ".secrets.env"),
			EncryptionKey: getEnv("SECRETS_ENCRYPTION_KEY", ""),
		},
		Gateway: GatewayConfig{
			Prefix:            getEnv("COMMAND_PREFIX", "."),
			OwnerID:           getEnv("OWNER_ID", ""),
			SessionsDir:       getEnv("SESSIONS_DIR", "./sessions"),
			HandlersDir:       getEnv("HANDLERS_DIR", "./handlers"),
			ReconnectDelay:    getEnvAsDuration("RECONNECT_DELAY", 5*time.Second),
			MaxReconnectDelay: getEnvAsDuration("MAX_RECONNECT_DELAY", time.Minute),
			PairingDelay:      getEnvAsDuration("PAIRING_DELAY", 3*time.Second),
			PairingWait:       getEnvAsDuration("PAIRING_WAIT", 30*time.Second),
			PairingCodeTTL:    getEnvAsDuration("PAIRING_CODE_TTL", 2*time.Minute),
			HandlerTimeout:    getEnvAsDuration("HANDLER_TIMEOUT", time.Minute),
			SendTimeout:       getEnvAsDuration("SEND_TIMEOUT", 15*time.Second),
			DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 8),
			DispatchBacklog:   getEnvAsInt("DISPATCH_BACKLOG_WARN", 64),
			RestoreParallel:   getEnvAsInt("RESTORE_PARALLEL", 4),
		},
		Transport: TransportConfig{
			Type:      getEnv("TRANSPORT_TYPE", "wsbridge"),
			BridgeURL: getEnv("BRIDGE_URL", "ws://localhost:8090/bridge"),
		},
		AI: AIConfig{
			GeminiKeyURI:    getEnv("AI_GEMINI_KEY_URI", "dotenv://GEMINI_API_KEY"),
			AnthropicKeyURI: getEnv("AI_ANTHROPIC_KEY_URI", "dotenv://ANTHROPIC_API_KEY"),
			Models:          getEnvAsList("AI_MODELS", DefaultModels),
			Timeout:         getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
			HistoryTurns:    getEnvAsInt("AI_HISTORY_TURNS", 5),
			PersonaName:     getEnv("AI_PERSONA_NAME", "Shadow Monarch Assistant"),
			MaxOutputTokens: getEnvAsInt("AI_MAX_OUTPUT_TOKENS", 800),
		},
		Memory: MemoryConfig{
			Capacity:      getEnvAsInt("MEMORY_CAPACITY", 50),
			RetentionDays: getEnvAsInt("MEMORY_RETENTION_DAYS", 60),
			SweepSchedule: getEnv("MEMORY_SWEEP_SCHEDULE", "@daily"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would make the gateway misbehave at runtime.
func (c *Config) Validate() error {
	if len([]rune(c.Gateway.Prefix)) != 1 {
		return fmt.Errorf("COMMAND_PREFIX must be a single character, got %q", c.Gateway.Prefix)
	}
	if c.Gateway.DispatchWorkers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be positive")
	}
	if c.Gateway.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive")
	}
	if c.Gateway.MaxReconnectDelay < c.Gateway.ReconnectDelay {
		c.Gateway.MaxReconnectDelay = c.Gateway.ReconnectDelay
	}
	if c.Memory.Capacity <= 0 {
		return fmt.Errorf("MEMORY_CAPACITY must be positive")
	}
	if c.Memory.RetentionDays <= 0 {
		return fmt.Errorf("MEMORY_RETENTION_DAYS must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
