package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/domain/compliance"
	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/db"
	"github.com/careflow/careflow/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careflow",
		Short: "Care schedule agenda and compliance API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// migrationSource reads from dir when set, else from the embedded files.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// connect loads the config and opens a pool for the one-shot commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func tenantFlag(cmd *cobra.Command, cfg *config.Config) (db.TenantContext, error) {
	id, _ := cmd.Flags().GetString("tenant")
	if id == "" {
		id = cfg.DefaultTenant
	}
	return db.NewTenantContext(id)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tc, err := tenantFlag(cmd, cfg)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			fmt.Printf("Running migrations on schema: %s\n", tc.Schema)
			if err := db.CreateTenantSchema(ctx, pool, tc.ID, nil); err != nil {
				return err
			}
			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx, tc)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tc, err := tenantFlag(cmd, cfg)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx, tc)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(os.Stdout, tc.Schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Drop the tenant schema and re-run migrate up to rebuild it.")
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply the migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, migrationSource(cfg.MigrationsDir)); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Offline reports",
	}

	complianceCmd := &cobra.Command{
		Use:   "compliance",
		Short: "Compute the schedule compliance report for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tc, err := tenantFlag(cmd, cfg)
			if err != nil {
				return err
			}
			start, end, err := reportRange(cmd)
			if err != nil {
				return err
			}
			var shiftID *uuid.UUID
			if raw, _ := cmd.Flags().GetString("shift"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --shift: %w", err)
				}
				shiftID = &id
			}

			logger := newLogger(cfg.Env)
			svc := newServices(cfg, care.NewRepositoriesPG(pool), cache.NopKV{}, logger)
			report, err := svc.compliance.Report(ctx, tc, start, end, shiftID)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("xlsx")
			return writeReport(os.Stdout, out, report)
		},
	}
	complianceCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	complianceCmd.Flags().String("date", "", "Single day (YYYY-MM-DD)")
	complianceCmd.Flags().String("start", "", "First day of the range (YYYY-MM-DD)")
	complianceCmd.Flags().String("end", "", "Last day of the range (YYYY-MM-DD)")
	complianceCmd.Flags().String("shift", "", "Shift template id restricting the time window")
	complianceCmd.Flags().String("xlsx", "", "Write a spreadsheet to this path instead of JSON on stdout")

	cmd.AddCommand(complianceCmd)
	return cmd
}

// reportRange maps --date or --start/--end onto the service's range
// arguments; empty values let the service default to the tenant's today.
func reportRange(cmd *cobra.Command) (string, string, error) {
	date, _ := cmd.Flags().GetString("date")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	if date != "" {
		if start != "" || end != "" {
			return "", "", errors.New("--date cannot be combined with --start/--end")
		}
		return date, date, nil
	}
	return start, end, nil
}

func writeReport(stdout io.Writer, xlsxPath string, report *compliance.Report) error {
	if xlsxPath == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	data, err := compliance.ExportXLSX(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", xlsxPath, err)
	}
	fmt.Fprintf(stdout, "Wrote %d day(s) to %s\n", len(report.Days), xlsxPath)
	return nil
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	checks := map[string]db.Check{"postgres": db.PoolCheck(pool)}

	// Cache
	var kv cache.KV = cache.NopKV{}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure redis")
		}
		defer client.Close()
		redisKV := cache.NewRedisKV(client)
		kv = redisKV
		checks["redis"] = redisKV.Ping
		logger.Info().Msg("redis cache enabled")
	}

	e := newServer(cfg, backends{
		repos:  care.NewRepositoriesPG(pool),
		kv:     kv,
		checks: checks,
	}, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
