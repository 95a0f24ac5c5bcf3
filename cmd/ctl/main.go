// Command ctl is the execassist operations CLI.
//
// Usage:
//
//	execassist-ctl migrate
//	execassist-ctl engine run
//	execassist-ctl scan urgent
//	execassist-ctl scan digest
//	execassist-ctl digest send --user 42 --force-window
//	execassist-ctl gc-ledger --retention 720h
//	execassist-ctl token --user 1 --role admin --ttl 24h
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/execassist/internal/api"
	"github.com/albapepper/execassist/internal/app"
	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/db"
	"github.com/albapepper/execassist/internal/maintenance"
	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "execassist-ctl",
		Short:        "execassist operations CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(engineCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(digestCmd())
	root.AddCommand(gcLedgerCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// A plain connection: pooled connections prepare statements
			// against tables this command creates.
			conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer conn.Close(context.Background())

			if err := store.Migrate(ctx, conn); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// engine command
// --------------------------------------------------------------------------

func engineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Autonomous engine operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one engine cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				report, err := a.Engine.RunNow(ctx)
				if err != nil {
					return fmt.Errorf("engine cycle: %w", err)
				}
				return printJSON(report)
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// scan command
// --------------------------------------------------------------------------

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a notification scan once",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "urgent",
		Short: "Notify urgent tasks, imminent meetings and high-priority leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				return printJSON(a.Scheduler.RunUrgentScan(ctx))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "digest",
		Short: "Send digests to users inside a digest window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				return printJSON(a.Scheduler.RunDigestScan(ctx))
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// digest command
// --------------------------------------------------------------------------

func digestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Digest operations for a single user",
	}

	var userID int64
	var force bool
	send := &cobra.Command{
		Use:   "send",
		Short: "Send one user's digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				if !a.Scheduler.Enabled() {
					return errors.New("notifications are disabled (NOTIFICATIONS_ENABLED=false)")
				}
				user, err := a.Store.GetUser(ctx, userID)
				if err != nil {
					return fmt.Errorf("load user %d: %w", userID, err)
				}
				var ok bool
				if force {
					ok = a.Dispatcher.ForceDigest(ctx, user)
				} else {
					ok = a.Dispatcher.SendDigest(ctx, user)
				}
				logger.Info("Digest dispatch finished", "user_id", userID, "force_window", force, "handled", ok)
				return nil
			})
		},
	}
	send.Flags().Int64Var(&userID, "user", 0, "User ID")
	send.Flags().BoolVar(&force, "force-window", false, "Ignore the digest time window")
	_ = send.MarkFlagRequired("user")
	cmd.AddCommand(send)
	return cmd
}

// --------------------------------------------------------------------------
// gc-ledger command
// --------------------------------------------------------------------------

func gcLedgerCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "gc-ledger",
		Short: "Delete notification ledger rows older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				if !cmd.Flags().Changed("retention") {
					retention = cfg.LogRetention
				}
				n := maintenance.PurgeLedger(ctx, a.Store, time.Now().Add(-retention), logger)
				logger.Info("Ledger purge finished", "removed", n, "retention", retention)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 30*24*time.Hour, "Keep rows newer than this (default NOTIFICATION_LOG_RETENTION_DAYS)")
	return cmd
}

// --------------------------------------------------------------------------
// token command
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	var userID int64
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tok, err := api.NewAuthenticator(cfg.JWTSecret, 0).IssueToken(userID, role, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User ID (token subject)")
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// run loads config, connects to the database, wires the app and calls fn.
// Timers are never started; commands drive scans and cycles directly.
func run(fn func(ctx context.Context, cfg *config.Config, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	a, err := app.New(ctx, cfg, pool.Pool, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, cfg, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
