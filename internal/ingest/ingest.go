// Package ingest is the offline corpus producer: it chunks documents, masks
// PII, embeds the chunks, and upserts them into the vector index the
// retrieval pipeline searches.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/vector"
)

// Chunking defaults: a sliding word window with overlap so sentences cut at
// a boundary still appear whole in a neighboring chunk.
const (
	DefaultChunkWords   = 800
	DefaultChunkOverlap = 120
	DefaultBatchSize    = 20
)

// Chunk is one unit of ingestable text with its provenance metadata.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ChunkText splits text into overlapping word windows. IDs are derived from
// the content hash so re-ingesting unchanged text overwrites in place.
func ChunkText(text, source string, chunkWords, overlap int) []Chunk {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	if overlap < 0 || overlap >= chunkWords {
		overlap = DefaultChunkOverlap
	}
	// The fallback itself must leave a positive step for small windows.
	if overlap >= chunkWords {
		overlap = chunkWords / 4
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []Chunk
	step := chunkWords - overlap
	for start := 0; start < len(words); start += step {
		end := start + chunkWords
		if end > len(words) {
			end = len(words)
		}
		body := strings.Join(words[start:end], " ")
		chunks = append(chunks, Chunk{
			ID:   contentID(source, body),
			Text: body,
			Metadata: map[string]string{
				"source": source,
				"chunk":  fmt.Sprintf("%d", len(chunks)),
			},
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

func contentID(source, text string) string {
	sum := md5.Sum([]byte(source + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Ingestor embeds chunks and upserts them in batches.
type Ingestor struct {
	embedder  ai.Embedder
	index     vector.Index
	namespace string
	batchSize int
	logger    *slog.Logger
}

// NewIngestor creates an ingestor writing into the given namespace.
func NewIngestor(embedder ai.Embedder, index vector.Index, namespace string, logger *slog.Logger) *Ingestor {
	if namespace == "" {
		namespace = "main"
	}
	return &Ingestor{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		batchSize: DefaultBatchSize,
		logger:    logger.With("component", "ingest"),
	}
}

// Ingest embeds and upserts all chunks, batchSize at a time. Returns the
// number of chunks written. Stops at the first failure; partial progress is
// kept since upserts are idempotent by id.
func (ing *Ingestor) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	written := 0
	for start := 0; start < len(chunks); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		items := make([]vector.Item, 0, end-start)
		for _, c := range chunks[start:end] {
			embedding, err := ing.embedder.Embed(ctx, c.Text)
			if err != nil {
				return written, fmt.Errorf("embedding chunk %s: %w", c.ID, err)
			}
			items = append(items, vector.Item{
				ID:        c.ID,
				Namespace: ing.namespace,
				Text:      c.Text,
				Embedding: embedding,
				Metadata:  c.Metadata,
			})
		}

		if err := ing.index.Upsert(ctx, items); err != nil {
			return written, fmt.Errorf("upserting batch at %d: %w", start, err)
		}
		written += len(items)
		ing.logger.Info("ingested batch", "namespace", ing.namespace, "written", written, "total", len(chunks))
	}
	return written, nil
}
