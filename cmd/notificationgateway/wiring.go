package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"

	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/apns"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/email"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/logsink"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/push"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/sms"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/telegram"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/twilio"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/web"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/whatsapp"
	"github.com/tinywideclouds/go-notification-gateway/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-notification-gateway/internal/storage/firestore"
	"github.com/tinywideclouds/go-notification-gateway/internal/storage/sqlite"
	"github.com/tinywideclouds/go-notification-gateway/notificationservice/config"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// buildRegistry creates one adapter per fan-out channel according to the
// configured backends.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*fanout.Registry, []io.Closer, error) {
	registry := fanout.NewRegistry()

	// A. Email
	var emailAdapter dispatch.Adapter
	switch cfg.Channels.Email {
	case config.BackendSMTP:
		emailAdapter = email.NewAdapter(email.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			Encryption: cfg.SMTP.Encryption,
		}, logger)
	default:
		emailAdapter = logsink.NewAdapter(notification.ChannelEmail, logger)
	}
	if err := registry.Register(notification.ChannelEmail, emailAdapter); err != nil {
		return nil, nil, err
	}

	// B. Push
	var pushAdapter dispatch.Adapter
	switch cfg.Channels.Push {
	case config.BackendProvider:
		senders, err := buildPushSenders(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		pushAdapter = push.NewRouter(senders, logger)
	default:
		pushAdapter = logsink.NewAdapter(notification.ChannelPush, logger)
	}
	if err := registry.Register(notification.ChannelPush, pushAdapter); err != nil {
		return nil, nil, err
	}

	// C. SMS
	var smsAdapter dispatch.Adapter
	switch cfg.Channels.SMS {
	case config.BackendTwilio:
		client, err := newTwilioClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		smsAdapter = sms.NewAdapter(client, cfg.Twilio.From, logger)
	default:
		smsAdapter = logsink.NewAdapter(notification.ChannelSMS, logger)
	}
	if err := registry.Register(notification.ChannelSMS, smsAdapter); err != nil {
		return nil, nil, err
	}

	return registry, nil, nil
}

// buildPushSenders enables each push platform whose credentials are present.
func buildPushSenders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[notification.PushPlatform]push.Sender, error) {
	senders := make(map[notification.PushPlatform]push.Sender)

	if cfg.FCM.Enabled {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase App: %w", err)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create FCM messaging client: %w", err)
		}
		senders[notification.PushPlatformFCM] = fcm.NewDispatcher(fcmMessaging, logger)
	}

	if cfg.APNS.P8Key != "" {
		apnsDispatcher, err := apns.NewDispatcher(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: cfg.APNS.P8Key,
			Sandbox:      cfg.APNS.Sandbox,
		}, logger)
		if err != nil {
			return nil, err
		}
		senders[notification.PushPlatformAPNS] = apnsDispatcher
	}

	if cfg.Vapid.PrivateKey != "" && cfg.Vapid.PublicKey != "" {
		senders[notification.PushPlatformWeb] = web.NewDispatcher(web.Config{
			PublicKey:       cfg.Vapid.PublicKey,
			PrivateKey:      cfg.Vapid.PrivateKey,
			SubscriberEmail: cfg.Vapid.SubscriberEmail,
			TTL:             cfg.Vapid.TTL,
		}, logger)
	} else {
		logger.Warn("VAPID keys missing in configuration. Web Push is disabled.")
	}

	if len(senders) == 0 {
		logger.Warn("Push backend is 'provider' but no push platform is configured.")
	}
	return senders, nil
}

// buildDirectSenders returns nil interfaces for disabled direct channels.
func buildDirectSenders(cfg *config.Config, logger *slog.Logger) (dispatch.WhatsAppSender, dispatch.TelegramSender, error) {
	var whatsappSender dispatch.WhatsAppSender
	switch cfg.WhatsApp.Backend {
	case config.BackendTwilio:
		client, err := newTwilioClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		sender, err := whatsapp.NewSender(client, cfg.WhatsApp.From, logger)
		if err != nil {
			return nil, nil, err
		}
		whatsappSender = sender
	case config.BackendLog:
		whatsappSender = logsink.NewWhatsApp(logger)
	}

	var telegramSender dispatch.TelegramSender
	switch cfg.Telegram.Backend {
	case config.BackendBot:
		client, err := telegram.NewClient(cfg.Telegram.BotToken, logger)
		if err != nil {
			return nil, nil, err
		}
		telegramSender = client
	case config.BackendLog:
		telegramSender = logsink.NewTelegram(logger)
	}

	return whatsappSender, telegramSender, nil
}

func newTwilioClient(cfg *config.Config) (*twilio.Client, error) {
	return twilio.NewClient(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
	})
}

// buildHistoryStore returns a nil store when history is disabled. The store
// is decorated with the Redis read-aside cache when Redis is enabled.
func buildHistoryStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.HistoryStore, []io.Closer, error) {
	var closers []io.Closer
	var store dispatch.HistoryStore

	switch cfg.History.Backend {
	case config.HistoryFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, closers, fmt.Errorf("firestore client failed: %w", err)
		}
		closers = append(closers, fsClient)
		store = fsStore.NewHistoryStore(fsClient, cfg.History.Collection, logger)
	case config.HistorySQLite:
		db, err := sqlite.Open(ctx, cfg.History.SQLitePath)
		if err != nil {
			return nil, closers, fmt.Errorf("sqlite history failed: %w", err)
		}
		closers = append(closers, db)
		store = sqlite.NewHistoryStore(db, logger)
	default:
		logger.Info("Notification history disabled")
		return nil, closers, nil
	}
	logger.Info("HistoryStore initialized", "type", cfg.History.Backend)

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, closers, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		closers = append(closers, redisClient)
		store = cache.NewCachedHistoryStore(store, redisClient, cfg.History.CacheTTL)
		logger.Info("HistoryStore upgraded", "type", "redis_cached_"+cfg.History.Backend)
	}

	return store, closers, nil
}
