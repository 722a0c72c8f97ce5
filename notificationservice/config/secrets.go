package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Secrets are provider credentials. They are only ever read from the
// environment and never appear in the YAML file.
type Secrets struct {
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	VapidPrivateKey  string `envconfig:"VAPID_PRIVATE_KEY"`
	APNSP8Key        string `envconfig:"APNS_P8_KEY"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
}

func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}
	return &s, nil
}

// ApplySecrets copies every non-empty secret into cfg. It must run before
// UpdateConfigWithEnvOverrides so validation sees the credentials.
func ApplySecrets(cfg *Config, s *Secrets) {
	if s == nil {
		return
	}
	set := func(target *string, val string) {
		if val != "" {
			*target = val
		}
	}
	set(&cfg.SMTP.Password, s.SMTPPassword)
	set(&cfg.Twilio.AccountSID, s.TwilioAccountSID)
	set(&cfg.Twilio.AuthToken, s.TwilioAuthToken)
	set(&cfg.Telegram.BotToken, s.TelegramBotToken)
	set(&cfg.Vapid.PrivateKey, s.VapidPrivateKey)
	set(&cfg.APNS.P8Key, s.APNSP8Key)
	set(&cfg.Redis.Password, s.RedisPassword)
}
