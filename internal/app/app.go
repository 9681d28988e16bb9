// Package app owns the process-wide objects of a docchat run: the vector
// store, the embedder, the retriever, the ingestion pipeline, the answer
// generator and the metrics registry. Everything is constructed once in New
// and released in Close; components receive their collaborators explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/54b3r/docchat/internal/budget"
	"github.com/54b3r/docchat/internal/embedder"
	"github.com/54b3r/docchat/internal/generation"
	"github.com/54b3r/docchat/internal/ingestion"
	"github.com/54b3r/docchat/internal/metrics"
	"github.com/54b3r/docchat/internal/provider"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/shell"
	"github.com/54b3r/docchat/internal/tracing"
)

// Vector store backends.
const (
	StoreSQLite = "sqlite"
	StoreQdrant = "qdrant"
)

// DefaultCollection is the collection every document is stored in.
const DefaultCollection = "conhecimento_empresa"

// QdrantSettings holds the Qdrant connection parameters.
type QdrantSettings struct {
	Host   string
	Port   int
	APIKey string
	TLS    bool
}

// Settings is the resolved configuration of one docchat run.
type Settings struct {
	// VectorStore selects the backend: sqlite (default) or qdrant.
	VectorStore string
	// StorePath is the SQLite database file.
	StorePath string
	// Collection is the collection name.
	Collection string
	// DocsDir is the directory scanned on refresh.
	DocsDir string
	// TopK is the number of passages retrieved per question.
	TopK int
	// Fallback is the sentence used when the answer is not in the context.
	Fallback string
	// MaxContextTokens is the estimated prompt budget.
	MaxContextTokens int
	// MetricsAddr, when set, serves /metrics and /ready on that address.
	MetricsAddr string

	Qdrant    QdrantSettings
	Embedding embedder.Settings
	Provider  *provider.Config
	Tracing   tracing.Settings
}

// SettingsFromEnv resolves Settings from environment variables.
//
//	VECTOR_STORE               = sqlite | qdrant (default: sqlite)
//	DOCCHAT_STORE_PATH         = SQLite file (default: ~/.docchat/vectors.db)
//	DOCCHAT_COLLECTION         = collection name (default: conhecimento_empresa)
//	DOCCHAT_DOCS_DIR           = documents directory (default: ./documentos)
//	DOCCHAT_TOP_K              = passages per question (default: 2)
//	DOCCHAT_FALLBACK           = fallback sentence (default: Não encontrei essa informação)
//	DOCCHAT_MAX_CONTEXT_TOKENS = prompt budget (default: 6000)
//	DOCCHAT_METRICS_ADDR       = metrics listen address (default: disabled)
//	QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY, QDRANT_TLS
func SettingsFromEnv() (Settings, error) {
	s := Settings{
		VectorStore: strings.ToLower(getEnvOrDefault("VECTOR_STORE", StoreSQLite)),
		StorePath:   os.Getenv("DOCCHAT_STORE_PATH"),
		Collection:  getEnvOrDefault("DOCCHAT_COLLECTION", DefaultCollection),
		DocsDir:     getEnvOrDefault("DOCCHAT_DOCS_DIR", ingestion.DefaultDir),
		Fallback:    getEnvOrDefault("DOCCHAT_FALLBACK", generation.DefaultFallback),
		MetricsAddr: os.Getenv("DOCCHAT_METRICS_ADDR"),
		Embedding:   embedder.SettingsFromEnv(),
		Provider:    provider.ConfigFromEnv(),
		Tracing:     tracing.SettingsFromEnv(),
		Qdrant: QdrantSettings{
			Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			TLS:    os.Getenv("QDRANT_TLS") == "true",
		},
	}

	var err error
	if s.TopK, err = getEnvInt("DOCCHAT_TOP_K", rag.DefaultTopK); err != nil {
		return s, err
	}
	if s.MaxContextTokens, err = getEnvInt("DOCCHAT_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens); err != nil {
		return s, err
	}
	if s.Qdrant.Port, err = getEnvInt("QDRANT_PORT", 6334); err != nil {
		return s, err
	}

	if s.StorePath == "" && s.VectorStore == StoreSQLite {
		if s.StorePath, err = rag.DefaultDBPath(); err != nil {
			return s, err
		}
	}
	return s, nil
}

// store is what the app needs from a vector store backend.
type store interface {
	rag.VectorStore
	metrics.Pinger
}

// Option customises New.
type Option func(*options)

type options struct {
	chatModel model.BaseChatModel
	registry  *prometheus.Registry
}

// WithChatModel uses cm instead of building one from Settings.Provider.
func WithChatModel(cm model.BaseChatModel) Option {
	return func(o *options) { o.chatModel = cm }
}

// WithRegistry registers metrics into reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// App holds the constructed components of one run.
type App struct {
	Settings Settings

	Store     rag.VectorStore
	Embedder  rag.Embedder
	Retriever *rag.DefaultRetriever
	Pipeline  *ingestion.Pipeline
	Generator *generation.Generator
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	log          *slog.Logger
	pinger       metrics.Pinger
	flushTracing func()
	stopMetrics  context.CancelFunc
	metricsDone  chan error
}

// New builds every component from s. The vector store is opened and the
// collection created if needed; no request is sent to the completion
// service. A missing completion API key is logged as a warning and
// surfaces as an authentication error on the first question.
func New(ctx context.Context, s Settings, log *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = slog.Default()
	}

	if err := embedder.Validate(s.Embedding, log); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	emb, err := embedder.New(s.Embedding)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	cm := o.chatModel
	if cm == nil {
		if s.Provider == nil {
			return nil, fmt.Errorf("app: provider config must not be nil")
		}
		if key := s.Provider.MissingCredential(); key != "" {
			log.Warn("completion API key not set; questions will fail until it is configured",
				slog.String("provider", string(s.Provider.Backend)),
				slog.String("env", key),
			)
		}
		if cm, err = provider.New(ctx, s.Provider); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)

	st, err := openStore(ctx, s)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings:     s,
		Store:        st,
		Embedder:     emb,
		Metrics:      m,
		Registry:     reg,
		log:          log,
		pinger:       st,
		flushTracing: func() {},
	}

	if a.Retriever, err = rag.NewRetriever(emb, st, s.TopK); err != nil {
		_ = st.Close()
		return nil, err
	}
	if a.Pipeline, err = ingestion.NewPipeline(emb, st, &ingestion.Config{Metrics: m, Logger: log}); err != nil {
		_ = st.Close()
		return nil, err
	}

	modelName := ""
	temperature := float32(provider.DefaultTemperature)
	if s.Provider != nil {
		modelName = s.Provider.ModelName()
		temperature = s.Provider.Tuning.Temperature
	}
	if a.Generator, err = generation.New(ctx, &generation.Config{
		ChatModel:        cm,
		Model:            modelName,
		Temperature:      temperature,
		Fallback:         s.Fallback,
		MaxContextTokens: s.MaxContextTokens,
	}); err != nil {
		_ = st.Close()
		return nil, err
	}

	a.flushTracing = tracing.Setup(s.Tracing, log)

	if s.MetricsAddr != "" {
		a.startMetrics(s.MetricsAddr)
	}

	log.Debug("app ready",
		slog.String("store", st.Name()),
		slog.String("collection", s.Collection),
		slog.String("embedding", s.Embedding.Backend),
		slog.String("model", modelName),
		slog.Int("top_k", s.TopK),
	)
	return a, nil
}

// Shell builds the interactive shell reading from in and writing to out.
func (a *App) Shell(in io.Reader, out io.Writer) (*shell.Shell, error) {
	return shell.New(&shell.Config{
		Ingester:  a.Pipeline,
		Retriever: a.Retriever,
		Answerer:  a.Generator,
		DocsDir:   a.Settings.DocsDir,
		TopK:      a.Settings.TopK,
		In:        in,
		Out:       out,
		Metrics:   a.Metrics,
		Logger:    a.log,
	})
}

// Close stops the metrics listener, flushes traces and closes the store.
func (a *App) Close() error {
	var errs []error
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			errs = append(errs, err)
		}
	}
	a.flushTracing()
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("app: close store: %w", err))
	}
	return errors.Join(errs...)
}

// startMetrics serves /metrics and /ready in the background until Close.
func (a *App) startMetrics(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopMetrics = cancel
	a.metricsDone = make(chan error, 1)

	srv := metrics.NewServer(addr, a.Registry, a.log, a.pinger)
	go func() {
		err := srv.Start(ctx)
		if err != nil {
			a.log.Error("metrics listener stopped", slog.String("error", err.Error()))
		}
		a.metricsDone <- err
	}()
}

// openStore opens the configured vector store backend.
func openStore(ctx context.Context, s Settings) (store, error) {
	switch s.VectorStore {
	case StoreSQLite, "":
		st, err := rag.OpenSQLite(ctx, s.StorePath, s.Collection)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return st, nil
	case StoreQdrant:
		if s.Embedding.Dimensions <= 0 {
			return nil, fmt.Errorf("app: qdrant needs a positive EMBEDDING_DIMENSIONS, got %d", s.Embedding.Dimensions)
		}
		st, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.Qdrant.Host,
			Port:       s.Qdrant.Port,
			Collection: s.Collection,
			VectorSize: uint64(s.Embedding.Dimensions),
			APIKey:     s.Qdrant.APIKey,
			UseTLS:     s.Qdrant.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("app: unknown VECTOR_STORE %q, valid values: sqlite, qdrant", s.VectorStore)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses the named environment variable as an int, returning
// fallback when unset. A malformed value is an error.
func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("app: %s must be an integer, got %q", key, v)
	}
	return n, nil
}
