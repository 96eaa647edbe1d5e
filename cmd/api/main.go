package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AlanaPvart7/Proyect2/internal/di"
	"github.com/AlanaPvart7/Proyect2/internal/handlers"
	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/config"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/platform/idempotency"
	"github.com/AlanaPvart7/Proyect2/internal/platform/jobs"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/platform/observability"
	"github.com/AlanaPvart7/Proyect2/internal/platform/secrets"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
	firestoreRepo "github.com/AlanaPvart7/Proyect2/internal/repositories/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

const idempotencySweepLimit = 200

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger("fulfillment-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	var checks []repositories.DependencyCheck

	publisher, closePubSub, err := newEventPublisher(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise pubsub publisher", zap.Error(err))
	}
	defer closePubSub()
	if publisher != nil {
		checks = append(checks, repositories.DependencyCheck{Name: "pubsub", Optional: true, Check: publisher.check})
	} else {
		logger.Info("pubsub: events topic not configured; fulfillment events disabled")
	}

	locker, closeRedis, err := newLocker(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to initialise lock backend", zap.Error(err))
	}
	defer closeRedis()
	if redisLocker, ok := locker.(*locks.RedisLocker); ok {
		checks = append(checks, repositories.DependencyCheck{Name: "redis", Check: redisLocker.Ping})
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, checks...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLocker(locker),
		di.WithLogger(logger.Named("services")),
		di.WithBuildInfo(buildInfo),
	}
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher))
	}
	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	seeded, err := container.SeedStatuses(ctx)
	if err != nil {
		logger.Fatal("failed to seed status definitions", zap.Error(err))
	}
	if seeded > 0 {
		logger.Info("seeded status definitions", zap.Int("count", seeded))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreProvider)
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore, idempotency.WithTTL(cfg.Idempotency.TTL))

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	if cfg.Idempotency.SweepInterval > 0 {
		sweepWG.Add(1)
		go func() {
			defer sweepWG.Done()
			idempotency.Sweep(sweepCtx, idempotencyStore, cfg.Idempotency.SweepInterval, idempotencySweepLimit, logger.Named("idempotency"))
		}()
	}

	svc := container.Services
	inventoryHandlers := handlers.NewInventoryHandlers(authenticator, svc.Inventory)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, svc.LineItems, svc.Lifecycle)
	statusHandlers := handlers.NewStatusDefinitionHandlers(authenticator, svc.Statuses)
	internalHandlers := handlers.NewInternalHandlers(svc.Reconciler)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithInventoryRoutes(inventoryHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(idempotencyMiddleware),
		handlers.WithOrderStatusRoutes(statusHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("fulfillment api listening", zap.String("version", buildInfo.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

type topicPublisher struct {
	*jobs.PubSubEventPublisher
	topic *pubsub.Topic
}

func (p *topicPublisher) check(ctx context.Context) error {
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("topic %s not found", p.topic.ID())
	}
	return nil
}

// newEventPublisher returns a nil publisher when no topic is configured.
func newEventPublisher(ctx context.Context, cfg config.PubSubConfig) (*topicPublisher, func(), error) {
	noop := func() {}
	topicID := strings.TrimSpace(cfg.EventsTopic)
	if topicID == "" || strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, noop, nil
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub: create client: %w", err)
	}
	topic := client.Topic(topicID)
	publisher, err := jobs.NewPubSubEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return &topicPublisher{PubSubEventPublisher: publisher, topic: topic}, closeFn, nil
}

// newLocker prefers Redis and falls back to in-process locks when no address is configured.
func newLocker(cfg config.RedisConfig, logger *zap.Logger) (locks.Locker, func(), error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		logger.Warn("redis: address not configured; using in-process locks")
		return locks.NewKeyedMutex(cfg.LockWait), func() {}, nil
	}

	redis.SetLogger(observability.NewContextPrintfLogger(logger, "redis"))
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	locker, err := locks.NewRedisLocker(client, locks.WithLeaseTTL(cfg.LockTTL), locks.WithWait(cfg.LockWait))
	if err != nil {
		_ = client.Close()
		return nil, func() {}, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}
	return locker, closeFn, nil
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(logger))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" && !isSecretRef(credentials) {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve to a value. The Redis password is only
// required when Redis is configured with a secret reference.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.TrimSpace(env["API_REDIS_ADDR"]) != "" && isSecretRef(env["API_REDIS_PASSWORD"]) {
		required = append(required, "Redis.Password")
	}
	return required
}

func isSecretRef(value string) bool {
	value = strings.TrimSpace(value)
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}
