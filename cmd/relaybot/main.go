package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaybot/internal/bus"
	"relaybot/internal/cache"
	"relaybot/internal/channel"
	"relaybot/internal/config"
	"relaybot/internal/responder"
	"relaybot/internal/router"
	"relaybot/internal/store"
	"relaybot/internal/texts"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "relaybot",
		Short: "Relaybot: AI-or-human conversation relay",
		Long:  "Relaybot routes chat conversations between an AI responder and a human operator, with a per-conversation handoff toggle.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.relaybot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay (Telegram + webhook ingress + router)",
		Long:  "Starts all enabled channels and the routing loop. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(100, logger)

	dialogStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("dialogue store: %w", err)
	}
	defer dialogStore.Close()

	catalog, err := texts.Load(cfg.Texts.Path, logger)
	if err != nil {
		return fmt.Errorf("texts catalog: %w", err)
	}

	ai := responder.NewOpenAI(responder.OpenAIConfig{
		APIKey:         cfg.Responder.APIKey,
		APIBase:        cfg.Responder.APIBase,
		Model:          cfg.Responder.Model,
		SystemPrompt:   cfg.Responder.SystemPrompt,
		TimeoutSeconds: cfg.Responder.TimeoutSeconds,
		Logger:         logger,
	})
	if err := ai.Healthy(ctx); err != nil {
		logger.Warn("responder unhealthy at startup", "responder", ai.Name(), "err", err)
	} else {
		logger.Info("responder healthy", "responder", ai.Name())
	}

	routeLoop := router.New(router.Config{
		Store:       dialogStore,
		Cache:       cache.New(),
		Responder:   ai,
		Bus:         messageBus,
		Texts:       catalog,
		Logger:      logger,
		OperatorID:  cfg.Telegram.OperatorChatID,
		Toggle:      catalog.ToggleButton,
		Concurrency: cfg.General.MaxConcurrentMessages,
	})

	go routeLoop.Run(ctx)

	var telegramCh *channel.Telegram
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:        cfg.Telegram.Token,
			OperatorID:   cfg.Telegram.OperatorChatID,
			ToggleButton: catalog.ToggleButton,
			ParseMode:    cfg.Telegram.ParseMode,
			Logger:       logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, messageBus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var webhookCh *channel.Webhook
	if cfg.Webhook.Enabled {
		webhookCh = channel.NewWebhook(channel.WebhookConfig{
			Port:           cfg.Webhook.Port,
			Path:           cfg.Webhook.Path,
			Secret:         cfg.Webhook.Secret,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsPath:    cfg.Metrics.Endpoint,
			Logger:         logger,
		})
		go func() {
			if err := webhookCh.Start(ctx, messageBus); err != nil {
				logger.Error("webhook channel error", "err", err)
			}
		}()
		logger.Info("webhook channel enabled", "port", cfg.Webhook.Port, "path", cfg.Webhook.Path)
	}

	logger.Info("relay started. Press Ctrl+C to stop.")

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down relay...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if webhookCh != nil {
			webhookCh.Stop()
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			ai := responder.NewOpenAI(responder.OpenAIConfig{
				APIKey:         cfg.Responder.APIKey,
				APIBase:        cfg.Responder.APIBase,
				Model:          cfg.Responder.Model,
				TimeoutSeconds: cfg.Responder.TimeoutSeconds,
				Logger:         logger,
			})
			if err := ai.Healthy(ctx); err != nil {
				logger.Info("responder", "name", ai.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("responder", "name", ai.Name(), "healthy", true)
			}

			dialogStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "ok", false, "err", err)
				return nil
			}
			defer dialogStore.Close()
			count, err := dialogStore.ConversationCount(ctx)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "ok", false, "err", err)
			} else {
				logger.Info("store", "path", cfg.Store.DBPath, "ok", true, "conversations", count)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. webhook.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. responder.model gpt-4o)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
