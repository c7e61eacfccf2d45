// Package main is the entry point for the UnifiedUI Chat Gateway.
// @title UnifiedUI Chat Gateway API
// @version 1.0
// @description Control plane for multi-tenant messaging bot sessions: pairing, credentials, command handlers and settings
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/unifiedui/chat-gateway
// @contact.email support@unifiedui.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Operator bearer token
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unifiedui/chat-gateway/docs"
	"github.com/unifiedui/chat-gateway/internal/api/handlers"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	"github.com/unifiedui/chat-gateway/internal/api/routes"
	"github.com/unifiedui/chat-gateway/internal/config"
	"github.com/unifiedui/chat-gateway/internal/core/cache"
	"github.com/unifiedui/chat-gateway/internal/core/docdb"
	"github.com/unifiedui/chat-gateway/internal/core/transport"
	"github.com/unifiedui/chat-gateway/internal/core/vault"
	anthropicai "github.com/unifiedui/chat-gateway/internal/infrastructure/ai/anthropic"
	"github.com/unifiedui/chat-gateway/internal/infrastructure/ai/gemini"
	rediscache "github.com/unifiedui/chat-gateway/internal/infrastructure/cache/redis"
	"github.com/unifiedui/chat-gateway/internal/infrastructure/docdb/mongodb"
	"github.com/unifiedui/chat-gateway/internal/infrastructure/transport/wsbridge"
	dotenvvault "github.com/unifiedui/chat-gateway/internal/infrastructure/vault/dotenv"
	"github.com/unifiedui/chat-gateway/internal/pkg/encryption"
	"github.com/unifiedui/chat-gateway/internal/pkg/logger"
	"github.com/unifiedui/chat-gateway/internal/services/ai"
	"github.com/unifiedui/chat-gateway/internal/services/autoreply"
	"github.com/unifiedui/chat-gateway/internal/services/classifier"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/dispatch"
	"github.com/unifiedui/chat-gateway/internal/services/events"
	"github.com/unifiedui/chat-gateway/internal/services/gateway"
	commands "github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/services/handlers/builtin"
	"github.com/unifiedui/chat-gateway/internal/services/memory"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Multi-tenant chat bot gateway",
		Long: `The gateway keeps bot sessions connected to the messaging network,
routes inbound messages to command handlers or the AI auto-responder,
and exposes an operator control plane over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newKeygenCmd())
	root.AddCommand(newHandlersCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize vault client using factory pattern
	vaultClient, err := createVaultClient(cfg.Vault)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	defer vaultClient.Close()

	// Initialize cache client using factory pattern
	cacheClient, err := createCacheClient(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache client: %w", err)
	}
	defer cacheClient.Close()

	// Initialize document db client using factory pattern
	docDBClient, err := createDocDBClient(ctx, cfg.DocDB)
	if err != nil {
		return fmt.Errorf("failed to initialize document db client: %w", err)
	}
	defer docDBClient.Close(context.Background())

	if err := docDBClient.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	encryptor, err := createEncryptor(ctx, cfg.Vault, vaultClient)
	if err != nil {
		return fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	settingsService, err := settings.NewService(&settings.Config{
		Cache:         cacheClient,
		FallbackOwner: cfg.Gateway.OwnerID,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize settings service: %w", err)
	}

	memoryService, err := memory.NewService(&memory.Config{
		Store:    docDBClient.Memories(),
		Capacity: cfg.Memory.Capacity,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize memory service: %w", err)
	}
	sweeper, err := memory.NewSweeper(memoryService, cfg.Memory.SweepSchedule, cfg.Memory.Retention())
	if err != nil {
		return fmt.Errorf("failed to initialize memory sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	credentialStore, err := credentials.NewStore(&credentials.Config{
		Root:      cfg.Gateway.SessionsDir,
		Encryptor: encryptor,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	registry := commands.NewRegistry()
	dispatcher, err := dispatch.NewDispatcher(&dispatch.Config{
		Registry:       registry,
		HandlerTimeout: cfg.Gateway.HandlerTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	queue, err := dispatch.NewQueue(cfg.Gateway.DispatchWorkers, cfg.Gateway.DispatchBacklog)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatch queue: %w", err)
	}
	defer queue.Close()

	aiClient, err := ai.NewClient(&ai.Config{
		Providers: createAIProviders(ctx, cfg.AI, vaultClient),
		Models:    cfg.AI.Models,
		Timeout:   cfg.AI.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize AI client: %w", err)
	}

	responder, err := autoreply.NewOrchestrator(&autoreply.Config{
		Memory:       memoryService,
		Settings:     settingsService,
		AI:           aiClient,
		Prefix:       cfg.Gateway.Prefix,
		Persona:      cfg.AI.PersonaName,
		HistoryTurns: cfg.AI.HistoryTurns,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auto-responder: %w", err)
	}

	cls, err := classifier.New(cfg.Gateway.Prefix, settingsService)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	router, err := gateway.NewRouter(&gateway.Config{
		Classifier: cls,
		Dispatcher: dispatcher,
		Queue:      queue,
		Responder:  responder,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize message router: %w", err)
	}

	dialer, err := createDialer(cfg.Transport)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}

	bus := events.NewBus(events.DefaultBuffer)
	manager, err := sessions.NewManager(&sessions.Config{
		Dialer:            dialer,
		Credentials:       credentialStore,
		Router:            router,
		Cache:             cacheClient,
		Bus:               bus,
		ReconnectDelay:    cfg.Gateway.ReconnectDelay,
		MaxReconnectDelay: cfg.Gateway.MaxReconnectDelay,
		PairingDelay:      cfg.Gateway.PairingDelay,
		PairingCodeTTL:    cfg.Gateway.PairingCodeTTL,
		SendTimeout:       cfg.Gateway.SendTimeout,
		RestoreParallel:   cfg.Gateway.RestoreParallel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	builtins, err := builtin.NewSource(builtin.Deps{
		Memory:    memoryService,
		Settings:  settingsService,
		Restarter: manager,
		Lister:    registry,
		Prefix:    cfg.Gateway.Prefix,
		StartedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize built-in handlers: %w", err)
	}
	files, err := commands.NewFileSource(cfg.Gateway.HandlersDir)
	if err != nil {
		return fmt.Errorf("failed to initialize handler directory: %w", err)
	}
	registry.AddSource(builtins)
	registry.AddSource(files)
	if _, err := registry.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("handler registry loaded with errors")
	}

	watcher, err := commands.NewWatcher(registry, files.Dir(), 0)
	if err != nil {
		return fmt.Errorf("failed to initialize handler watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("handler hot reload disabled")
	}
	defer watcher.Stop()

	restored, err := manager.RestoreAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to restore sessions")
	}
	log.Info().Int("sessions", restored).Msg("sessions restored")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	engine := setupRouter(cfg, routes.Config{
		HealthHandler: handlers.NewHealthHandler(cacheClient, docDBClient, manager.Registry(), registry),
		SessionsHandler: handlers.NewSessionsHandler(handlers.SessionsHandlerConfig{
			Manager:     manager,
			Bus:         bus,
			Cache:       cacheClient,
			PairingWait: cfg.Gateway.PairingWait,
		}),
		CredentialsHandler: handlers.NewCredentialsHandler(credentialStore, manager),
		CommandsHandler:    handlers.NewCommandsHandler(registry, files),
		SettingsHandler:    handlers.NewSettingsHandler(settingsService),
		EventsHandler:      handlers.NewEventsHandler(bus, manager),
		AuthMiddleware:     middleware.NewAuthMiddleware(cfg.Server.OperatorToken),
	})

	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: engine,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	log.Info().Msg("shutting down gateway")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	watcher.Stop()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("session manager did not stop cleanly")
	}

	log.Info().Msg("gateway exited")
	return nil
}

// createVaultClient creates a vault client based on the configuration.
func createVaultClient(cfg config.VaultConfig) (vault.Vault, error) {
	switch vault.Type(cfg.Type) {
	case vault.TypeDotEnv:
		return dotenvvault.NewVault(cfg.SecretsFile)
	default:
		return nil, fmt.Errorf("unsupported vault type: %s", cfg.Type)
	}
}

// createCacheClient creates a cache client based on the configuration.
func createCacheClient(cfg config.CacheConfig) (cache.Cache, error) {
	switch cache.Type(cfg.Type) {
	case cache.TypeRedis:
		return rediscache.NewCache(rediscache.Config{
			Host:      cfg.Host,
			Port:      cfg.Port,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// createDocDBClient creates a document database client based on the configuration.
func createDocDBClient(ctx context.Context, cfg config.DocDBConfig) (docdb.Client, error) {
	switch docdb.Type(cfg.Type) {
	case docdb.TypeMongoDB, docdb.TypeCosmosDB:
		// Cosmos DB's MongoDB API rejects retryable writes.
		return mongodb.NewClient(ctx, &mongodb.ClientConfig{
			URI:                cfg.URI,
			DatabaseName:       cfg.Database,
			AppName:            "chat-gateway",
			DisableRetryWrites: docdb.Type(cfg.Type) == docdb.TypeCosmosDB,
		})
	default:
		return nil, fmt.Errorf("unsupported docdb type: %s", cfg.Type)
	}
}

// createEncryptor creates the credential bundle encryptor. Without a key
// bundles are stored as plaintext.
func createEncryptor(ctx context.Context, cfg config.VaultConfig, vaultClient vault.Vault) (encryption.Encryptor, error) {
	key := cfg.EncryptionKey
	if key == "" {
		if secret, err := vaultClient.GetSecret(ctx, "dotenv://SECRETS_ENCRYPTION_KEY"); err == nil {
			key = secret
		}
	}
	if key == "" {
		log.Warn().Msg("SECRETS_ENCRYPTION_KEY not set, credentials are stored unencrypted")
	}
	return encryption.New(key)
}

// createDialer creates the messaging-network transport.
func createDialer(cfg config.TransportConfig) (transport.Dialer, error) {
	switch cfg.Type {
	case "wsbridge":
		return wsbridge.NewDialer(wsbridge.Config{URL: cfg.BridgeURL})
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

// createAIProviders builds every provider whose API key resolves. Models of
// a missing provider are skipped by the fallback client.
func createAIProviders(ctx context.Context, cfg config.AIConfig, vaultClient vault.Vault) map[ai.ProviderName]ai.Provider {
	providers := make(map[ai.ProviderName]ai.Provider)

	if key := resolveSecret(ctx, vaultClient, cfg.GeminiKeyURI); key != "" {
		p, err := gemini.NewProvider(ctx, key, gemini.Options{MaxOutputTokens: int32(cfg.MaxOutputTokens)})
		if err != nil {
			log.Error().Err(err).Msg("gemini provider disabled")
		} else {
			providers[ai.ProviderGemini] = p
		}
	}
	if key := resolveSecret(ctx, vaultClient, cfg.AnthropicKeyURI); key != "" {
		p, err := anthropicai.NewProvider(key, cfg.MaxOutputTokens)
		if err != nil {
			log.Error().Err(err).Msg("anthropic provider disabled")
		} else {
			providers[ai.ProviderAnthropic] = p
		}
	}

	if len(providers) == 0 {
		log.Warn().Msg("no AI provider configured, auto-replies will report unavailability")
	}
	return providers
}

func resolveSecret(ctx context.Context, vaultClient vault.Vault, uri string) string {
	if uri == "" {
		return ""
	}
	secret, err := vaultClient.GetSecret(ctx, uri)
	if err != nil {
		if !errors.Is(err, vault.ErrSecretNotFound) {
			log.Warn().Err(err).Str("uri", uri).Msg("failed to resolve secret")
		}
		return ""
	}
	return secret
}

// setupRouter creates and configures the Gin router.
func setupRouter(cfg *config.Config, routesCfg routes.Config) *gin.Engine {
	router := gin.New()

	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()

	routes.SetupWithMiddleware(router, &routesCfg, loggingMw, errorMw, middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation endpoint
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
