package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/responder"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your relaybot installation",
		Long: `Verifies that relaybot's configuration, database, responder, and
channels are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Relaybot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'relaybot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Database writable
			if err := checkDatabase(cfg.Store.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Store.DBPath)
				passed++
			}

			// 4. Responder reachable
			if cfg.Responder.APIKey == "" {
				printWarn("Responder", "no API key configured")
				warned++
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				ai := responder.NewOpenAI(responder.OpenAIConfig{
					APIKey:         cfg.Responder.APIKey,
					APIBase:        cfg.Responder.APIBase,
					Model:          cfg.Responder.Model,
					TimeoutSeconds: cfg.Responder.TimeoutSeconds,
					Logger:         logger,
				})
				if err := ai.Healthy(ctx); err != nil {
					printFail("Responder", err.Error())
					failed++
				} else {
					printPass("Responder", cfg.Responder.Model)
					passed++
				}
				cancel()
			}

			// 5. Telegram credentials
			if cfg.Telegram.Enabled {
				if cfg.Telegram.Token == "" {
					printFail("Telegram", "enabled but no token configured")
					failed++
				} else if cfg.Telegram.OperatorChatID == "" {
					printFail("Telegram", "enabled but no operator chat id configured")
					failed++
				} else {
					printPass("Telegram", "operator "+cfg.Telegram.OperatorChatID)
					passed++
				}
			} else {
				printWarn("Telegram", "disabled")
				warned++
			}

			// 6. Webhook port
			if cfg.Webhook.Enabled {
				port := cfg.Webhook.Port
				if port == 0 {
					port = 9090
				}
				if err := checkPort(port); err != nil {
					printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", port, err))
					warned++
				} else {
					printPass("Webhook port", fmt.Sprintf(":%d available", port))
					passed++
				}
			}

			// 7. Texts catalog readable
			if cfg.Texts.Path != "" {
				if _, err := os.Stat(cfg.Texts.Path); err != nil {
					printWarn("Texts catalog", fmt.Sprintf("not found: %s (built-in texts will be used)", cfg.Texts.Path))
					warned++
				} else {
					printPass("Texts catalog", cfg.Texts.Path)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running relaybot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nRelaybot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Relaybot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
