package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlChannelsConfig struct {
	Email string `yaml:"email"`
	Push  string `yaml:"push"`
	SMS   string `yaml:"sms"`
}

type YamlSMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	From       string `yaml:"from"`
	Encryption string `yaml:"encryption"`
}

type YamlTwilioConfig struct {
	From string `yaml:"from"`
}

type YamlWhatsAppConfig struct {
	Backend string `yaml:"backend"`
	From    string `yaml:"from"`
}

type YamlTelegramConfig struct {
	Backend string `yaml:"backend"`
}

type YamlAPNSConfig struct {
	KeyID    string `yaml:"key_id"`
	TeamID   string `yaml:"team_id"`
	BundleID string `yaml:"bundle_id"`
	Sandbox  bool   `yaml:"sandbox"`
}

type YamlRedisConfig struct {
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Enabled bool   `yaml:"enabled"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
	TTL             int    `yaml:"ttl"`
}

type YamlFCMConfig struct {
	Enabled bool `yaml:"enabled"`
}

type YamlHistoryConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	Collection string `yaml:"collection"`
	CacheTTL   string `yaml:"cache_ttl"`
}

type YamlTelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SampleRate   float64 `yaml:"sample_rate"`
	Environment  string  `yaml:"environment"`
}

type YamlLoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type YamlDispatchConfig struct {
	AdapterTimeout string `yaml:"adapter_timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
// Credentials are deliberately absent; they arrive through LoadSecrets.
type YamlConfig struct {
	ProjectID              string              `yaml:"project_id"`
	ListenAddr             string              `yaml:"listen_addr"`
	IdentityServiceURL     string              `yaml:"identity_service_url"`
	TopicID                string              `yaml:"topic_id"`
	SubscriptionID         string              `yaml:"subscription_id"`
	SubscriptionDLQTopicID string              `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                 `yaml:"num_pipeline_workers"`
	CorsConfig             YamlCorsConfig      `yaml:"cors"`
	Channels               YamlChannelsConfig  `yaml:"channels"`
	SMTP                   YamlSMTPConfig      `yaml:"smtp"`
	Twilio                 YamlTwilioConfig    `yaml:"twilio"`
	WhatsApp               YamlWhatsAppConfig  `yaml:"whatsapp"`
	Telegram               YamlTelegramConfig  `yaml:"telegram"`
	APNS                   YamlAPNSConfig      `yaml:"apns"`
	FCM                    YamlFCMConfig       `yaml:"fcm"`
	RedisConfig            YamlRedisConfig     `yaml:"redis"`
	VapidConfig            YamlVapidConfig     `yaml:"vapid"`
	History                YamlHistoryConfig   `yaml:"history"`
	Telemetry              YamlTelemetryConfig `yaml:"telemetry"`
	Logging                YamlLoggingConfig   `yaml:"logging"`
	Dispatch               YamlDispatchConfig  `yaml:"dispatch"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	adapterTimeout, err := parseOptionalDuration(baseCfg.Dispatch.AdapterTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch.adapter_timeout: %w", err)
	}
	cacheTTL, err := parseOptionalDuration(baseCfg.History.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid history.cache_ttl: %w", err)
	}

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		IdentityServiceURL:     baseCfg.IdentityServiceURL,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Channels: ChannelsConfig{
			Email: baseCfg.Channels.Email,
			Push:  baseCfg.Channels.Push,
			SMS:   baseCfg.Channels.SMS,
		},
		SMTP: SMTPConfig{
			Host:       baseCfg.SMTP.Host,
			Port:       baseCfg.SMTP.Port,
			Username:   baseCfg.SMTP.Username,
			From:       baseCfg.SMTP.From,
			Encryption: baseCfg.SMTP.Encryption,
		},
		Twilio:   TwilioConfig{From: baseCfg.Twilio.From},
		WhatsApp: WhatsAppConfig{Backend: baseCfg.WhatsApp.Backend, From: baseCfg.WhatsApp.From},
		Telegram: TelegramConfig{Backend: baseCfg.Telegram.Backend},
		APNS: APNSConfig{
			KeyID:    baseCfg.APNS.KeyID,
			TeamID:   baseCfg.APNS.TeamID,
			BundleID: baseCfg.APNS.BundleID,
			Sandbox:  baseCfg.APNS.Sandbox,
		},
		FCM: FCMConfig{Enabled: baseCfg.FCM.Enabled},
		Redis: RedisConfig{
			Addr:    baseCfg.RedisConfig.Addr,
			DB:      baseCfg.RedisConfig.DB,
			Enabled: baseCfg.RedisConfig.Enabled,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
			TTL:             baseCfg.VapidConfig.TTL,
		},
		History: HistoryConfig{
			Backend:    baseCfg.History.Backend,
			SQLitePath: baseCfg.History.SQLitePath,
			Collection: baseCfg.History.Collection,
			CacheTTL:   cacheTTL,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: baseCfg.Telemetry.OTLPEndpoint,
			Insecure:     baseCfg.Telemetry.Insecure,
			SampleRate:   baseCfg.Telemetry.SampleRate,
			Environment:  baseCfg.Telemetry.Environment,
		},
		Logging: LoggingConfig{
			Level: baseCfg.Logging.Level,
			Dir:   baseCfg.Logging.Dir,
		},
		Dispatch: DispatchConfig{AdapterTimeout: adapterTimeout},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"history_backend", cfg.History.Backend,
	)

	return cfg, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
