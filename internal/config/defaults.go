package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
		},
		Telegram: TelegramConfig{
			Enabled:   false,
			ParseMode: "Markdown",
		},
		Responder: ResponderConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 120,
		},
		Store: StoreConfig{
			DBPath: "~/.relaybot/relay.db",
		},
		Webhook: WebhookConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/webhook",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		Texts: TextsConfig{},
	}
}
