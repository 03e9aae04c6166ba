package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"user-registry/config"
	"user-registry/handlers"
	"user-registry/models"
	"user-registry/services"
	"user-registry/utils"
)

// reporterBuffer sizes the async audit/notification/error channels
const reporterBuffer = 10000

var configPath string

var rootCmd = &cobra.Command{
	Use:   "user-registry",
	Short: "In-memory user registry with DNI/NIE validation",
	Long: `user-registry serves an in-memory registry of people keyed by DNI/NIE.

Records are validated on create and update, searchable by identifier or
surname fragment, and can be backed up to an S3-compatible bucket.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check user fields without starting the server",
	Long: `Run the registry field rules against the given values and print every
failing field. Exits non-zero when any field is rejected.

Examples:
  user-registry validate --id 12345678Z --first-name Ana --last-name "García López" --birth-date 1995-03-15`,
	RunE: runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("REGISTRY_CONFIG"), "path to YAML config file")

	validateCmd.Flags().String("id", "", "DNI or NIE")
	validateCmd.Flags().String("first-name", "", "first name")
	validateCmd.Flags().String("last-name", "", "surname(s)")
	validateCmd.Flags().String("birth-date", "", "birth date as YYYY-MM-DD")
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registryPolicy(cfg config.RegistryConfig) services.Policy {
	return services.Policy{
		StrictDates:    cfg.StrictDates,
		VerifyChecksum: cfg.VerifyChecksum,
	}
}

func seedUsers(cfg config.RegistryConfig) []models.User {
	var seed []models.User
	if cfg.SeedDefaults {
		seed = append(seed, services.DefaultSeed()...)
	}
	for _, u := range cfg.Seed {
		seed = append(seed, models.User{
			NationalID: u.NationalID,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			BirthDate:  models.ISOToDisplayDate(u.BirthDate),
		})
	}
	return seed
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry, err := services.NewUserService(registryPolicy(cfg.Registry), seedUsers(cfg.Registry)...)
	if err != nil {
		return err
	}

	reporters := utils.NewReporters(logger, reporterBuffer)
	defer reporters.Close()

	integration := services.NewIntegrationService(logger)
	if cfg.MinIO.ConnectOnStart {
		// Non-blocking; the connect endpoint can retry later
		go func() {
			if err := integration.Connect(cfg.MinIO); err != nil {
				logger.Warn("MinIO connection failed on startup (will retry on demand)", zap.Error(err))
			}
		}()
	}

	limiter := utils.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, reporters.Errors)
	router := handlers.NewRouter(
		handlers.NewUserHandler(registry, reporters),
		handlers.NewIntegrationHandler(integration, registry, reporters, cfg.MinIO),
		limiter,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Int("users", registry.Count()),
			zap.Int("rate_limit_rps", cfg.RateLimit.RPS),
			zap.Int("rate_limit_burst", cfg.RateLimit.Burst),
			zap.Bool("strict_dates", cfg.Registry.StrictDates),
			zap.Bool("verify_checksum", cfg.Registry.VerifyChecksum))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-quit:
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("id")
	first, _ := cmd.Flags().GetString("first-name")
	last, _ := cmd.Flags().GetString("last-name")
	birth, _ := cmd.Flags().GetString("birth-date")

	// An empty registry checks field rules only; duplicates cannot occur
	registry, err := services.NewUserService(registryPolicy(cfg.Registry))
	if err != nil {
		return err
	}

	user, err := registry.Create(id, first, last, birth)
	out := cmd.OutOrStdout()
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				fmt.Fprintf(out, "%s: %s\n", f.Field, f.Reason)
			}
		}
		return err
	}

	fmt.Fprintf(out, "ok: %s %s %s %s\n", user.NationalID, user.FirstName, user.LastName, user.BirthDate)
	return nil
}
