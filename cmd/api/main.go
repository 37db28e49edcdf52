// Package main implements the ScentMatch recommendation API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/scentmatch/scentmatch/engine/domain"
	"github.com/scentmatch/scentmatch/engine/insight"
	"github.com/scentmatch/scentmatch/engine/recommend"
	"github.com/scentmatch/scentmatch/engine/semantic"
	"github.com/scentmatch/scentmatch/pkg/d1"
	"github.com/scentmatch/scentmatch/pkg/metrics"
	"github.com/scentmatch/scentmatch/pkg/mid"
	"github.com/scentmatch/scentmatch/pkg/natsutil"
	"github.com/scentmatch/scentmatch/pkg/resilience"
	"github.com/scentmatch/scentmatch/pkg/together"
	"github.com/scentmatch/scentmatch/pkg/vectorize"
	"github.com/scentmatch/scentmatch/pkg/workersai"
)

// ResponsesSubject is the NATS subject recorded-response events go to.
const ResponsesSubject = "scentmatch.responses.recorded"

// Config holds all environment-based configuration.
type Config struct {
	Port             string
	CORSOrigin       string
	MetricsPort      string
	TogetherAPIKey   string
	TogetherModel    string
	CFAPIKey         string
	CFAccountID      string
	CFAuthEmail      string
	VectorizeIndex   string
	D1DatabaseID     string
	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	NATSURL          string
	RateLimitRPS     float64
	RateLimitBurst   int
}

func loadConfig() Config {
	return Config{
		Port:             envOr("PORT", "8080"),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		MetricsPort:      envOr("METRICS_PORT", "9090"),
		TogetherAPIKey:   os.Getenv("TOGETHER_API_KEY"),
		TogetherModel:    os.Getenv("TOGETHER_MODEL"),
		CFAPIKey:         os.Getenv("CLOUDFLARE_API_KEY"),
		CFAccountID:      os.Getenv("CF_ACCOUNT_ID"),
		CFAuthEmail:      os.Getenv("CF_AUTH_EMAIL"),
		VectorizeIndex:   envOr("VECTORIZE_INDEX", "perfume_index"),
		D1DatabaseID:     os.Getenv("D1_DATABASE_ID"),
		VectorBackend:    envOr("VECTOR_BACKEND", "vectorize"),
		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "perfumes"),
		NATSURL:          os.Getenv("NATS_URL"),
		RateLimitRPS:     envFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   envInt("RATE_LIMIT_BURST", 40),
	}
}

// validate reports every missing required setting at once.
func (c Config) validate() error {
	required := map[string]string{
		"TOGETHER_API_KEY":   c.TogetherAPIKey,
		"CLOUDFLARE_API_KEY": c.CFAPIKey,
		"CF_ACCOUNT_ID":      c.CFAccountID,
		"CF_AUTH_EMAIL":      c.CFAuthEmail,
		"D1_DATABASE_ID":     c.D1DatabaseID,
	}
	var missing []string
	for name, v := range required {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %v", missing)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbound calls are traced; no per-client timeout, the server write
	// timeout bounds a hung downstream.
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	// --- Downstream clients ---
	completion := together.New(cfg.TogetherAPIKey,
		together.WithModel(cfg.TogetherModel),
		together.WithHTTPClient(httpClient),
	)
	embedder := workersai.New(cfg.CFAccountID, cfg.CFAuthEmail, cfg.CFAPIKey, workersai.WithHTTPClient(httpClient))
	store := d1.New(cfg.CFAccountID, cfg.D1DatabaseID, cfg.CFAuthEmail, cfg.CFAPIKey, d1.WithHTTPClient(httpClient))

	var searcher recommend.Searcher
	switch cfg.VectorBackend {
	case "qdrant":
		qs, err := semantic.New(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer qs.Close()
		searcher = qs
	case "vectorize":
		searcher = &vectorizeSearcher{
			client: vectorize.New(cfg.CFAccountID, cfg.VectorizeIndex, cfg.CFAuthEmail, cfg.CFAPIKey, vectorize.WithHTTPClient(httpClient)),
		}
	default:
		return fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}

	// --- Optional NATS events ---
	var publish recommend.PublishFunc
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		publish = func(ctx context.Context, ev domain.ResponseRecorded) error {
			return natsutil.Publish(ctx, nc, ResponsesSubject, ev)
		}
	}

	// --- Build recommendation service ---
	reg := metrics.New()
	breaker := resilience.NewBreaker(resilience.DefaultOpts)
	generator := insight.New(&guardedCompleter{inner: completion, breaker: breaker}, logger)
	svc := recommend.New(
		generator,
		embedder,
		searcher,
		recommend.NewResolver(store),
		recommend.NewRecorder(store, publish, logger),
		reg,
		logger,
	)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /recommend-perfume", handleRecommend(svc, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)),
		mid.OTel("scentmatch-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Metrics side server ---
	go func() {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", reg.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mmux); err != nil {
			logger.Error("metrics server error", "err", err)
		}
	}()

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "vector_backend", cfg.VectorBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Recommender runs the pipeline for one questionnaire.
type Recommender interface {
	Recommend(ctx context.Context, answers domain.QuestionnaireAnswers) (*recommend.Recommendation, error)
}

func handleRecommend(svc Recommender, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var answers domain.QuestionnaireAnswers
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rec, err := svc.Recommend(r.Context(), answers)
		if err != nil {
			var se *recommend.StageError
			if errors.As(err, &se) {
				// The raw cause stays in the log; the client gets the
				// sanitized stage message.
				logger.Error("pipeline failed", "stage", se.Stage, "err", se.Err)
				writeError(w, se.Status, se.Message)
				return
			}
			logger.Error("recommend failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- Adapters ---

// vectorizeSearcher adapts the Vectorize client to recommend.Searcher.
type vectorizeSearcher struct {
	client *vectorize.Client
}

func (v *vectorizeSearcher) Search(ctx context.Context, vector []float32, topK int) ([]string, error) {
	return v.client.Query(ctx, vector, topK)
}

// guardedCompleter routes completion calls through a circuit breaker so a
// dead completion service fails fast instead of tying up requests.
type guardedCompleter struct {
	inner   *together.Client
	breaker *resilience.Breaker
}

func (g *guardedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = g.inner.Complete(ctx, prompt)
		return callErr
	})
	return out, err
}
