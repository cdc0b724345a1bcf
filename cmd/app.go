package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/ai"
	"github.com/siddu28/Erflog/internal/ai/gemini"
	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/filtering"
	"github.com/siddu28/Erflog/internal/lock"
	"github.com/siddu28/Erflog/internal/matching"
	"github.com/siddu28/Erflog/internal/pinecone"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/progress"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/saved"
	"github.com/siddu28/Erflog/internal/secrets"
	"github.com/siddu28/Erflog/internal/server"
	"github.com/siddu28/Erflog/internal/snapshot"
	"github.com/siddu28/Erflog/internal/store"
)

// backend is everything the commands need from persistence. Both store.DB
// and store.Memory satisfy it.
type backend interface {
	snapshot.Store
	progress.Store
	saved.Store
	saved.PlanStore
	profile.Reader
	filtering.SavedLister
	server.UserLister
}

// application holds the wired components shared by the commands.
type application struct {
	cfg     *Config
	logger  *zap.Logger
	store   backend
	db      *store.DB
	locker  lock.Locker
	saved   *saved.Service
	tracker *progress.Tracker
	caller  *ai.Caller
	closers []func()
}

func newApplication(ctx context.Context, cfg *Config, logger *zap.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: logger}

	if url := strings.TrimSpace(cfg.Database.URL); url != "" {
		db, err := store.Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = db
		a.closers = append(a.closers, db.Close)
	} else {
		logger.Warn("database.url is not set, using the in-memory store",
			zap.String("hint", "set DATABASE_URL to persist snapshots and progress"),
		)
		a.store = store.NewMemory()
	}

	if cfg.Redis != nil && strings.TrimSpace(cfg.Redis.Addr) != "" {
		client, err := lock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.locker = lock.NewRedis(client, logger, cfg.Redis.LockTTL)
	} else {
		a.locker = lock.NewLocal()
	}

	a.saved = saved.NewService(a.store, logger)
	a.tracker = progress.NewTracker(a.store, a.locker, logger)
	return a, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// orchestrator wires the generator, the similarity index and the store into
// a snapshot orchestrator.
func (a *application) orchestrator(ctx context.Context) (*snapshot.Orchestrator, error) {
	cfg := a.cfg

	generator, err := newGenerator(ctx, cfg.AI, a.logger)
	if err != nil {
		return nil, fmt.Errorf("building generator: %w", err)
	}
	caller := ai.NewCaller(generator, a.logger, cfg.AI.MaxLogLength)
	a.caller = caller

	index, vectors, err := newIndex(ctx, cfg.Pinecone, a.logger)
	if err != nil {
		return nil, fmt.Errorf("building similarity index: %w", err)
	}

	classifier, err := matching.NewClassifier(cfg.Matching.ReadyThreshold, cfg.Matching.DiscardThreshold)
	if err != nil {
		return nil, err
	}
	ready, discard := classifier.Thresholds()
	a.logger.Debug("classifier thresholds", zap.Float64("ready", ready), zap.Float64("discard", discard))

	return snapshot.New(snapshot.Deps{
		Store:        a.store,
		Profiles:     profile.NewResolver(a.store, vectors, generator, a.logger),
		Retriever:    matching.NewRetriever(index, a.logger),
		Classifier:   classifier,
		Synthesizer:  roadmap.NewSynthesizer(caller, cfg.Roadmap, a.logger),
		Composer:     compose.NewComposer(caller, a.logger),
		Locker:       a.locker,
		Saved:        a.store,
		Filters:      cfg.Filters.chain,
		FilterConfig: cfg.Filters.filtering(),
		Logger:       a.logger,
	}, cfg.Run)
}

// plans wires roadmap merging, reusing the orchestrator's generator when one
// was built. Without a generator the sources are combined deterministically.
func (a *application) plans(ctx context.Context) *saved.Plans {
	if a.caller == nil {
		generator, err := newGenerator(ctx, a.cfg.AI, a.logger)
		if err != nil {
			a.logger.Warn("merging roadmaps without a generator", zap.Error(err))
		} else {
			a.caller = ai.NewCaller(generator, a.logger, a.cfg.AI.MaxLogLength)
		}
	}
	return saved.NewPlans(a.store, roadmap.NewMerger(a.caller, a.logger), a.logger)
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	return gemini.NewGenerator(ctx, logger, gemini.Config{
		APIKey:         apiKey,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		MaxRetries:     cfg.Gemini.MaxRetries,
		Temperature:    cfg.Gemini.Temperature,
	})
}

func newIndex(ctx context.Context, cfg *PineconeConfig, logger *zap.Logger) (*pinecone.CatalogIndex, profile.VectorFetcher, error) {
	if cfg == nil {
		return nil, nil, errors.New("pinecone configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "pinecone api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set pinecone.api-key-file or PINECONE_API_KEY_FILE)", err)
	}

	client := pinecone.New(logger, apiKey)
	host, err := client.ResolveHost(ctx, cfg.Host, cfg.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve catalog index: %w", err)
	}

	namespaces := make(map[catalog.Namespace]string, len(cfg.Namespaces))
	for name, pineconeNS := range cfg.Namespaces {
		ns, err := catalog.ParseNamespace(name)
		if err != nil {
			return nil, nil, err
		}
		namespaces[ns] = pineconeNS
	}
	index := pinecone.NewCatalogIndex(client, host, namespaces)

	var vectors profile.VectorFetcher
	if cfg.UserHost != "" || cfg.UserIndex != "" {
		userHost, err := client.ResolveHost(ctx, cfg.UserHost, cfg.UserIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve user index: %w", err)
		}
		vectors = pinecone.NewUserVectors(client, userHost, cfg.UserNamespace)
	}

	return index, vectors, nil
}
