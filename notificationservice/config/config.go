package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Channel backends.
const (
	BackendLog      = "log"
	BackendSMTP     = "smtp"
	BackendProvider = "provider"
	BackendTwilio   = "twilio"
	BackendBot      = "bot"
)

// History backends.
const (
	HistoryNone      = "none"
	HistoryFirestore = "firestore"
	HistorySQLite    = "sqlite"
)

type ChannelsConfig struct {
	Email string // smtp | log
	Push  string // provider | log
	SMS   string // twilio | log
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Encryption string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// WhatsAppConfig selects the direct WhatsApp backend: twilio, log or empty
// for disabled.
type WhatsAppConfig struct {
	Backend string
	From    string
}

// TelegramConfig selects the direct Telegram backend: bot, log or empty for
// disabled.
type TelegramConfig struct {
	Backend  string
	BotToken string
}

type APNSConfig struct {
	KeyID    string
	TeamID   string
	BundleID string
	P8Key    string
	Sandbox  bool
}

type FCMConfig struct {
	Enabled bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	TTL             int
}

type HistoryConfig struct {
	Backend    string
	SQLitePath string
	Collection string
	CacheTTL   time.Duration
}

type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	SampleRate   float64
	Environment  string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type DispatchConfig struct {
	// AdapterTimeout bounds each channel attempt. Zero means no bound.
	AdapterTimeout time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	IdentityServiceURL     string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Channels   ChannelsConfig
	SMTP       SMTPConfig
	Twilio     TwilioConfig
	WhatsApp   WhatsAppConfig
	Telegram   TelegramConfig
	APNS       APNSConfig
	FCM        FCMConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	History    HistoryConfig
	Telemetry  TelemetryConfig
	Logging    LoggingConfig
	Dispatch   DispatchConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// PipelineEnabled reports whether Pub/Sub ingestion is configured.
func (c *Config) PipelineEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	override := func(key string, target *string) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*target = val
		}
	}

	override("PROJECT_ID", &cfg.ProjectID)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	override("TOPIC_ID", &cfg.TopicID)
	override("SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	override("IDENTITY_SERVICE_URL", &cfg.IdentityServiceURL)

	// Channel backends
	override("EMAIL_BACKEND", &cfg.Channels.Email)
	override("PUSH_BACKEND", &cfg.Channels.Push)
	override("SMS_BACKEND", &cfg.Channels.SMS)
	override("WHATSAPP_BACKEND", &cfg.WhatsApp.Backend)
	override("TELEGRAM_BACKEND", &cfg.Telegram.Backend)

	// Provider identities (not secrets)
	override("SMTP_HOST", &cfg.SMTP.Host)
	if val := os.Getenv("SMTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.SMTP.Port = port
		}
	}
	override("SMTP_USERNAME", &cfg.SMTP.Username)
	override("SMTP_FROM", &cfg.SMTP.From)
	override("TWILIO_FROM", &cfg.Twilio.From)
	override("WHATSAPP_FROM", &cfg.WhatsApp.From)
	override("APNS_KEY_ID", &cfg.APNS.KeyID)
	override("APNS_TEAM_ID", &cfg.APNS.TeamID)
	override("APNS_BUNDLE_ID", &cfg.APNS.BundleID)

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// VAPID Overrides
	override("VAPID_PUBLIC_KEY", &cfg.Vapid.PublicKey)
	override("VAPID_SUB_EMAIL", &cfg.Vapid.SubscriberEmail)

	// History
	override("HISTORY_BACKEND", &cfg.History.Backend)
	override("SQLITE_PATH", &cfg.History.SQLitePath)

	// Observability
	override("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	override("LOG_LEVEL", &cfg.Logging.Level)
	override("LOG_DIR", &cfg.Logging.Dir)

	if val := os.Getenv("ADAPTER_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid ADAPTER_TIMEOUT %q: %w", val, err)
		}
		cfg.Dispatch.AdapterTimeout = d
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	applyDefaults(cfg)

	// 3. Final Validation
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Channels.Email == "" {
		cfg.Channels.Email = BackendLog
	}
	if cfg.Channels.Push == "" {
		cfg.Channels.Push = BackendLog
	}
	if cfg.Channels.SMS == "" {
		cfg.Channels.SMS = BackendLog
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryNone
	}
	if cfg.History.Backend == HistorySQLite && cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = "notifications.db"
	}
	if cfg.History.CacheTTL <= 0 {
		cfg.History.CacheTTL = time.Minute
	}
	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}
}

func validate(cfg *Config) error {
	if err := oneOf("channels.email", cfg.Channels.Email, BackendSMTP, BackendLog); err != nil {
		return err
	}
	if err := oneOf("channels.push", cfg.Channels.Push, BackendProvider, BackendLog); err != nil {
		return err
	}
	if err := oneOf("channels.sms", cfg.Channels.SMS, BackendTwilio, BackendLog); err != nil {
		return err
	}
	if err := oneOf("whatsapp.backend", cfg.WhatsApp.Backend, "", BackendTwilio, BackendLog); err != nil {
		return err
	}
	if err := oneOf("telegram.backend", cfg.Telegram.Backend, "", BackendBot, BackendLog); err != nil {
		return err
	}
	if err := oneOf("history.backend", cfg.History.Backend, HistoryNone, HistoryFirestore, HistorySQLite); err != nil {
		return err
	}
	if cfg.Dispatch.AdapterTimeout < 0 {
		return fmt.Errorf("dispatch.adapter_timeout must not be negative")
	}

	needsProject := cfg.PipelineEnabled() || cfg.History.Backend == HistoryFirestore ||
		(cfg.Channels.Push == BackendProvider && cfg.FCM.Enabled)
	if needsProject && cfg.ProjectID == "" {
		return fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.Channels.Email == BackendSMTP && (cfg.SMTP.Host == "" || cfg.SMTP.From == "") {
		return fmt.Errorf("smtp.host and smtp.from are required when channels.email is smtp")
	}
	if usesTwilio(cfg) && (cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "") {
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required when a twilio backend is selected")
	}
	if cfg.Telegram.Backend == BackendBot && cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when telegram.backend is bot")
	}
	return nil
}

func usesTwilio(cfg *Config) bool {
	return cfg.Channels.SMS == BackendTwilio || cfg.WhatsApp.Backend == BackendTwilio
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q", field, value)
}
