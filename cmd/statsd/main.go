package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statsdb/auth"
	"statsdb/config"
	"statsdb/database"
	"statsdb/metrics"
	"statsdb/notify"
	"statsdb/querycache"
	"statsdb/routes"
	"statsdb/utils"
)

func main() {

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {

		fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {

	var configFile string

	root := &cobra.Command{

		Use: "statsd",

		Short: "Collects client usage statistics and serves reports",

		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")

	config.RegisterFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {

		cfg, err := config.Load(configFile, cmd.Flags())

		if err != nil {
			return nil, nil, err
		}

		logger, err := utils.NewLogger(cfg.IsProduction(), cfg.Log.Dir)

		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
		}

		return cfg, logger, nil
	}

	root.AddCommand(

		&cobra.Command{

			Use: "serve",

			Short: "Run the HTTP server",

			RunE: func(cmd *cobra.Command, _ []string) error {

				cfg, logger, err := load(cmd)

				if err != nil {
					return err
				}

				defer logger.Sync()

				return serve(cmd.Context(), cfg, logger)
			},
		},

		&cobra.Command{

			Use: "migrate",

			Short: "Create or update the database tables",

			RunE: func(cmd *cobra.Command, _ []string) error {

				cfg, logger, err := load(cmd)

				if err != nil {
					return err
				}

				defer logger.Sync()

				db, err := database.New(cfg.DB.Driver, cfg.GetDBConnectionString(), logger)

				if err != nil {
					return err
				}

				defer db.Close()

				return db.InitializeTables()
			},
		},

		&cobra.Command{

			Use: "hash-key KEY",

			Short: "Print the bcrypt hash to configure for an API key",

			Args: cobra.ExactArgs(1),

			RunE: func(cmd *cobra.Command, args []string) error {

				hash, err := auth.HashKey(args[0])

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), hash)

				return nil
			},
		},
	)

	return root
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {

	db, err := database.New(cfg.DB.Driver, cfg.GetDBConnectionString(), logger)

	if err != nil {
		return err
	}

	defer db.Close()

	if err := db.InitializeTables(); err != nil {
		return err
	}

	machines, err := database.NewMachineConfigRepository(db, cfg.Cache.Fingerprints)

	if err != nil {
		return err
	}

	defer machines.Close()

	authenticator, err := auth.New(cfg.Auth.APIKeyHashes, logger)

	if err != nil {
		return err
	}

	notifier, err := notify.NewCrashNotifier(cfg.Notify.CrashEndpoint, logger)

	if err != nil {

		logger.Warn("continuing without crash notifications", zap.Error(err))

		notifier, _ = notify.NewCrashNotifier("", logger)
	}

	defer notifier.Close()

	crashQueue := notify.NewCrashQueue(notifier, 100, 1, logger)

	defer crashQueue.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())

	routes.SetupRoutes(

		router,

		db,

		machines,

		crashQueue,

		authenticator,

		querycache.New(cfg.Cache.Capacity, logger),

		metrics.New(),

		logger,

		routes.Options{Production: cfg.IsProduction(), AllowOrigins: cfg.CORS.AllowOrigins},
	)

	server := &http.Server{

		Addr: ":" + cfg.GetServerPort(),

		Handler: router,

		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	defer stop()

	errs := make(chan error, 1)

	go func() {

		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("environment", cfg.Environment))

		errs <- server.ListenAndServe()
	}()

	select {

	case err := <-errs:

		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited with error: %w", err)
		}

		return nil

	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	defer cancel()

	return server.Shutdown(shutdownCtx)
}
