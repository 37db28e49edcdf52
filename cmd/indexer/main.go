// Command indexer builds the perfume vector index the API searches. It reads
// perfume rows from the relational store, embeds each name and description,
// and upserts the vectors into the configured backend (Vectorize or Qdrant).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/scentmatch/scentmatch/engine/semantic"
	"github.com/scentmatch/scentmatch/pkg/d1"
	"github.com/scentmatch/scentmatch/pkg/vectorize"
	"github.com/scentmatch/scentmatch/pkg/workersai"
)

// vectorDims matches @cf/baai/bge-base-en-v1.5 output.
const vectorDims = 768

func main() {
	godotenv.Load()

	var (
		backend    = flag.String("backend", envOr("VECTOR_BACKEND", "vectorize"), "vector backend: vectorize or qdrant")
		index      = flag.String("index", envOr("VECTORIZE_INDEX", "perfume_index"), "Vectorize index name")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "perfumes"), "Qdrant collection name")
		batchSize  = flag.Int("batch", 50, "vectors per upsert")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	accountID := os.Getenv("CF_ACCOUNT_ID")
	authEmail := os.Getenv("CF_AUTH_EMAIL")
	apiKey := os.Getenv("CLOUDFLARE_API_KEY")
	dbID := os.Getenv("D1_DATABASE_ID")
	if accountID == "" || authEmail == "" || apiKey == "" || dbID == "" {
		log.Error("CF_ACCOUNT_ID, CF_AUTH_EMAIL, CLOUDFLARE_API_KEY, and D1_DATABASE_ID are required")
		os.Exit(1)
	}

	store := d1.New(accountID, dbID, authEmail, apiKey)
	embedder := workersai.New(accountID, authEmail, apiKey)

	var sink upsertSink
	switch *backend {
	case "qdrant":
		qs, err := semantic.New(*qdrantAddr, *collection)
		if err != nil {
			log.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		defer qs.Close()
		if err := qs.EnsureCollection(ctx, vectorDims); err != nil {
			log.Error("ensure collection failed", "error", err)
			os.Exit(1)
		}
		sink = qdrantSink{store: qs}
	case "vectorize":
		sink = vectorizeSink{client: vectorize.New(accountID, *index, authEmail, apiKey)}
	default:
		log.Error("unknown backend", "backend", *backend)
		os.Exit(1)
	}

	if err := run(ctx, store, embedder, sink, *batchSize, log); err != nil {
		log.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

type perfume struct {
	id   uint64
	name string
	text string
}

// Embedder converts text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store reads perfume rows.
type Store interface {
	Query(ctx context.Context, sql string, params []any) ([]map[string]any, error)
}

func run(ctx context.Context, store Store, embedder Embedder, sink upsertSink, batchSize int, log *slog.Logger) error {
	rows, err := store.Query(ctx, "SELECT id, name, description FROM perfumes", nil)
	if err != nil {
		return fmt.Errorf("load perfumes: %w", err)
	}
	log.Info("perfumes loaded", "count", len(rows))

	perfumes := make([]perfume, 0, len(rows))
	for _, row := range rows {
		id, err := rowID(row)
		if err != nil {
			log.Warn("skipping row with bad id", "row", row, "error", err)
			continue
		}
		perfumes = append(perfumes, perfume{
			id:   id,
			name: fmt.Sprint(row["name"]),
			text: fmt.Sprintf("%v. %v", row["name"], row["description"]),
		})
	}

	batch := make([]indexedVector, 0, batchSize)
	indexed := 0
	for _, p := range perfumes {
		vec, err := embedder.Embed(ctx, p.text)
		if err != nil {
			return fmt.Errorf("embed perfume %d: %w", p.id, err)
		}
		batch = append(batch, indexedVector{id: p.id, name: p.name, values: vec})

		if len(batch) >= batchSize {
			if err := sink.upsert(ctx, batch); err != nil {
				return err
			}
			indexed += len(batch)
			log.Info("batch indexed", "total", indexed)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := sink.upsert(ctx, batch); err != nil {
			return err
		}
		indexed += len(batch)
	}

	log.Info("indexing complete", "indexed", indexed, "skipped", len(rows)-indexed)
	return nil
}

func rowID(row map[string]any) (uint64, error) {
	switch v := row["id"].(type) {
	case float64:
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Sinks ---

type indexedVector struct {
	id     uint64
	name   string
	values []float32
}

type upsertSink interface {
	upsert(ctx context.Context, batch []indexedVector) error
}

type vectorizeSink struct {
	client *vectorize.Client
}

func (s vectorizeSink) upsert(ctx context.Context, batch []indexedVector) error {
	vectors := make([]vectorize.Vector, len(batch))
	for i, v := range batch {
		vectors[i] = vectorize.Vector{ID: strconv.FormatUint(v.id, 10), Values: v.values}
	}
	return s.client.Upsert(ctx, vectors)
}

type qdrantSink struct {
	store *semantic.Store
}

func (s qdrantSink) upsert(ctx context.Context, batch []indexedVector) error {
	vectors := make([]semantic.PerfumeVector, len(batch))
	for i, v := range batch {
		vectors[i] = semantic.PerfumeVector{ID: v.id, Embedding: v.values, Name: v.name}
	}
	return s.store.Upsert(ctx, vectors)
}
