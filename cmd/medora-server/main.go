package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medora/medora/internal/config"
	"github.com/medora/medora/internal/domain/account"
	"github.com/medora/medora/internal/domain/dashboard"
	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/db"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medora-server",
		Short: "Medical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
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

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if cfg.EphemeralSecret {
		logger.Warn().Msg("JWT_SECRET_KEY not set, using a random development secret; tokens will not survive a restart")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	gdb, err := db.NewGorm(pool, cfg.IsDev())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open reporting handle")
	}

	tx := db.NewTransactor(pool)
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecretKey),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, auth.NewPGRevocationStore(pool))

	accountSvc := account.NewService(account.NewUserRepo(pool), tx, auth.NewHasher(cfg.BcryptCost), tokens)
	accountSvc.SetAllowPrivilegedSignup(cfg.AllowPrivilegedSignup)
	accountSvc.SetWriteChecker(tx)

	patientSvc := patient.NewService(patient.NewPatientRepo(pool), tx)
	patientSvc.SetLocation(loc)

	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), patientSvc, tx)
	schedulingSvc.SetLocation(loc)

	dashboardSvc := dashboard.NewService(dashboard.NewGormStore(gdb), accountSvc)
	dashboardSvc.SetLocation(loc)

	e := newRouter(logger, cfg, services{
		tokens:     tokens,
		account:    accountSvc,
		patient:    patientSvc,
		scheduling: schedulingSvc,
		dashboard:  dashboardSvc,
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
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
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
					}
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote and reactivate an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := adminInput(cmd)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := account.NewService(account.NewUserRepo(pool), db.NewTransactor(pool), auth.NewHasher(cfg.BcryptCost), nil)
			user, created, err := svc.EnsureAdmin(ctx, in)
			if err != nil {
				return describe(err)
			}
			if created {
				fmt.Printf("Created admin %s (%s)\n", user.Username, user.ID)
			} else {
				fmt.Printf("Promoted existing user %s (%s) to admin\n", user.Username, user.ID)
			}
			return nil
		},
	}
	createAdmin.Flags().String("username", "admin", "Admin username")
	createAdmin.Flags().String("email", "", "Admin email")
	createAdmin.Flags().String("password", "", "Admin password (or ADMIN_PASSWORD)")
	createAdmin.Flags().String("first-name", "System", "First name")
	createAdmin.Flags().String("last-name", "Administrator", "Last name")
	_ = createAdmin.MarkFlagRequired("email")
	cmd.AddCommand(createAdmin)

	return cmd
}

func adminInput(cmd *cobra.Command) account.RegisterInput {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	first, _ := cmd.Flags().GetString("first-name")
	last, _ := cmd.Flags().GetString("last-name")
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	return account.RegisterInput{
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
		Role:      string(auth.RoleAdmin),
	}
}

// describe flattens validation details into the error text for terminal
// output.
func describe(err error) error {
	var e *apierr.Error
	if errors.As(err, &e) && len(e.Details) > 0 {
		return fmt.Errorf("%s: %s", e.Message, strings.Join(e.Details, "; "))
	}
	return err
}
