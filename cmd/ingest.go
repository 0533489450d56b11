package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astralhq/astral-assist/db"
	"github.com/astralhq/astral-assist/internal/config"
	"github.com/astralhq/astral-assist/internal/ingest"
	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/vector"
)

var ingestNamespace string

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents into the vector index",
	Long: `Ingest chunks the given files, embeds each chunk, and upserts the result
into the vector index. CSV files are ingested one row per record with PII
masked in the embedded text; other files are split into overlapping word
windows.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestNamespace, "namespace", "", "target namespace (defaults to the configured one)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	namespace := ingestNamespace
	if namespace == "" {
		namespace = cfg.Namespace
	}

	connString := cfg.PostgresConnectionString()
	if err := db.Migrate(connString, logger); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	pool, err := vector.NewPool(ctx, connString)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()

	embedder, err := buildEmbedder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	index := vector.NewStore(pool, cfg.VectorDimension, logger)
	ing := ingest.NewIngestor(embedder, index, namespace, logger)

	total := 0
	for _, path := range paths {
		chunks, err := loadChunks(path)
		if err != nil {
			return err
		}
		written, err := ing.Ingest(ctx, chunks)
		total += written
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		logger.Info("ingested file", "path", path, "chunks", written)
	}

	fmt.Printf("Ingested %d chunks into namespace %q\n", total, namespace)
	return nil
}

func loadChunks(path string) ([]ingest.Chunk, error) {
	source := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return ingest.ChunksFromCSV(f, source)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ingest.ChunkText(ingest.MaskPII(string(data)), source, ingest.DefaultChunkWords, ingest.DefaultChunkOverlap), nil
}
