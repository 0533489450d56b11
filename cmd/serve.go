package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astralhq/astral-assist/db"
	"github.com/astralhq/astral-assist/internal/api"
	"github.com/astralhq/astral-assist/internal/command"
	"github.com/astralhq/astral-assist/internal/config"
	"github.com/astralhq/astral-assist/internal/email"
	"github.com/astralhq/astral-assist/internal/hr"
	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/rag"
	"github.com/astralhq/astral-assist/internal/router"
	"github.com/astralhq/astral-assist/internal/session"
	"github.com/astralhq/astral-assist/internal/vector"
)

var serveDryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "validate and log emails without delivering them")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	logger.Info("starting astral", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connString := cfg.PostgresConnectionString()
	if err := db.Migrate(connString, logger); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	pool, err := vector.NewPool(ctx, connString)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()

	index := vector.NewStore(pool, cfg.VectorDimension, logger)

	embedder, err := buildEmbedder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	retrieval := rag.NewService(embedder, index, generator, rag.Config{
		Namespace:       cfg.Namespace,
		TopK:            cfg.TopK,
		SystemPrompt:    cfg.SystemPrompt,
		Temperature:     cfg.Temperature,
		HistoryWindow:   cfg.HistoryWindow,
		EmbedTimeout:    cfg.EmbedTimeout(),
		SearchTimeout:   cfg.SearchTimeout(),
		GenerateTimeout: cfg.GenerateTimeout(),
	}, logger)

	sessions := session.NewStore(cfg.SessionCapacity)
	parser := command.NewParser(sessions, logger)
	directory := hr.NewClient(cfg.HRBaseURL, logger)
	dispatcher := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
		DryRun:   serveDryRun,
		LogsDir:  cfg.EmailLogsDir,
	}, logger)

	rt := router.New(parser, sessions, retrieval, directory, dispatcher, logger)

	server := api.New(api.Config{
		Addr:        cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
		RateBurst:   cfg.RateBurst,
		TrustProxy:  cfg.TrustProxy,
		Namespace:   cfg.Namespace,
	}, rt, pool, index, sessions, logger)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
