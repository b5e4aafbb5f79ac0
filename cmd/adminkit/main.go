// Command adminkit serves the role/permission admin API and runs role
// migrations.
//
// Subcommands:
//
//	serve           HTTP admin API
//	migrate up      apply pending role migrations
//	migrate down    revert the newest applied role migrations
//	migrate status  list role migrations and their state
//	token           issue an admin bearer token
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"adminkit/internal/admin"
	"adminkit/internal/auth"
	"adminkit/internal/config"
	"adminkit/internal/instrument"
	"adminkit/internal/migration"
	"adminkit/internal/permission"
	"adminkit/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "adminkit",
		Short:         "Role and permission admin toolkit",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		tokenCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

// app bundles what every subcommand needs.
type app struct {
	cfg    *config.Config
	db     *store.Store
	perms  *permission.SQLStore
	runner *migration.Runner
	events *instrument.EventBuffer
}

func (a *app) Close() {
	if a.events != nil {
		a.events.Stop()
	}
	a.db.Close()
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log.Printf("Config loaded (port: %d, db: %s/%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	if cfg.Database.IsSQLite() {
		if err := os.MkdirAll(cfg.Database.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap system tables: %w", err)
	}

	migs, err := migration.Load(cfg.Migrations.Dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: migrations dir %s does not exist", cfg.Migrations.Dir)
	} else if err != nil {
		db.Close()
		return nil, err
	}

	perms := permission.NewSQLStore(db)
	runner, err := migration.NewRunner(db, permission.NewSynchronizer(perms), migs)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, db: db, perms: perms, runner: runner}
	if cfg.Events.Enabled {
		a.events = instrument.NewEventBuffer(db, cfg.Events.BufferSize, cfg.Events.FlushInterval)
		runner.SetRecorder(a.events)
	}
	return a, nil
}

// ── serve ────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.cfg.Filters.Location()

	srv := fiber.New(fiber.Config{
		ErrorHandler: admin.ErrorHandler,
	})
	srv.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	srv.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h := admin.NewHandler(a.db, a.perms, a.runner, loc)
	adminGroup := admin.RegisterAdminRoutes(srv, h, auth.AuthMiddleware(a.cfg.JWTSecret), auth.RequireAdmin())
	instrument.RegisterEventRoutes(adminGroup, instrument.NewEventHandler(a.db, loc))

	if a.cfg.Events.Enabled && a.cfg.Events.Retention > 0 {
		cleanup := instrument.NewCleanupScheduler(a.db, a.cfg.Events.Retention, a.cfg.Events.CleanupInterval)
		cleanup.Start()
		defer cleanup.Stop()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		serverErr <- srv.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	return srv.ShutdownWithTimeout(10 * time.Second)
}

// ── migrate ──────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, revert or inspect role migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending role migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.runner.Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Println("Nothing to migrate")
			}
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the newest applied role migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			reverted, err := a.runner.Down(cmd.Context(), steps)
			if err != nil {
				return err
			}
			if len(reverted) == 0 {
				log.Println("Nothing to revert")
			}
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	status := &cobra.Command{
		Use:   "status",
		Short: "List role migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.runner.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAPPLIED\tDESCRIPTION")
			for _, s := range st {
				applied := "no"
				if s.AppliedAt != nil {
					applied = s.AppliedAt.Format(time.DateTime)
				} else if s.Applied {
					applied = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, applied, s.Description)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// ── token ────────────────────────────────────────────────────────────────────

func tokenCmd() *cobra.Command {
	var (
		subject string
		roles   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			token, err := auth.GenerateAccessToken(subject, strings.Split(roles, ","), cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "adminkit", "token subject")
	cmd.Flags().StringVar(&roles, "roles", "admin", "comma-separated roles")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "token lifetime")
	return cmd
}
