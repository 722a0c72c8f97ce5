package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/internal/logging"
	"github.com/tinywideclouds/go-notification-gateway/internal/notifier"
	"github.com/tinywideclouds/go-notification-gateway/internal/telemetry"
	"github.com/tinywideclouds/go-notification-gateway/notificationservice"
	"github.com/tinywideclouds/go-notification-gateway/notificationservice/config"
)

const serviceName = "go-notification-gateway"

//go:embed local.yaml
var configFile []byte

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logging.ParseLevel(os.Getenv("LOG_LEVEL")),
	})).With("service", serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	cfg, err := loadConfig(configFile, bootLogger)
	if err != nil {
		bootLogger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Service: serviceName,
		Dir:     cfg.Logging.Dir,
	}, os.Stdout)
	if err != nil {
		bootLogger.Error("Logger setup failed", "err", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

func loadConfig(raw []byte, logger *slog.Logger) (*config.Config, error) {
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}
	config.ApplySecrets(baseCfg, secrets)
	return config.UpdateConfigWithEnvOverrides(baseCfg, logger)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// --- Telemetry ---
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry setup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "err", err)
		}
	}()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	// --- Channel Adapters ---
	registry, regClosers, err := buildRegistry(ctx, cfg, logger)
	closers = append(closers, regClosers...)
	if err != nil {
		return err
	}
	logger.Info("Channel registry ready", "channels", registry.Channels())

	whatsappSender, telegramSender, err := buildDirectSenders(cfg, logger)
	if err != nil {
		return err
	}

	// --- History ---
	history, histClosers, err := buildHistoryStore(ctx, cfg, logger)
	closers = append(closers, histClosers...)
	if err != nil {
		return err
	}

	// --- Core ---
	coordinator := fanout.NewCoordinator(registry, logger,
		fanout.WithAdapterTimeout(cfg.Dispatch.AdapterTimeout),
		fanout.WithTracerProvider(providers.TracerProvider),
		fanout.WithMeterProvider(providers.MeterProvider),
	)
	svc := notifier.New(coordinator, whatsappSender, telegramSender, history, logger)

	// --- Auth ---
	authMiddleware, err := buildAuth(cfg, logger)
	if err != nil {
		return err
	}

	// --- Pub/Sub ingestion ---
	var consumer messagepipeline.MessageConsumer
	if cfg.PipelineEnabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client failed: %w", err)
		}
		closers = append(closers, psClient)

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Info("No subscription configured; Pub/Sub ingestion disabled.")
	}

	service, err := notificationservice.New(cfg, svc, consumer, authMiddleware, providers.MetricsHandler, logger)
	if err != nil {
		return fmt.Errorf("service creation failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return service.Shutdown(shutdownCtx)
}

func buildAuth(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.IdentityServiceURL == "" {
		logger.Warn("No identity service configured; the API is unauthenticated.")
		return nil, nil
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(cfg.IdentityServiceURL, middleware.RSA256, logger)
	if err != nil {
		return nil, fmt.Errorf("jwt discovery failed: %w", err)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		return nil, fmt.Errorf("jwks middleware failed: %w", err)
	}
	return authMiddleware, nil
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")

	// With a topic configured the subscription is created on demand; otherwise
	// it must already exist.
	if cfg.TopicID != "" {
		subConfig := &pubsubpb.Subscription{
			Name:                  sub,
			Topic:                 convertPubsub(cfg.ProjectID, cfg.TopicID, "topics"),
			AckDeadlineSeconds:    10,
			EnableMessageOrdering: false,
		}
		if cfg.SubscriptionDLQTopicID != "" {
			subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
				DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
				MaxDeliveryAttempts: 5,
			}
		}
		logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
		_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
			} else {
				logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
				return nil, fmt.Errorf("could not create sub: %s", sub)
			}
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(sub), psClient, logger,
	)
}

func convertPubsub(project, id, kind string) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}
