package storage

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/metrics"
	"github.com/fusionguard/recommender/internal/recommend"
	"github.com/fusionguard/recommender/pkg/catalog"
	"github.com/fusionguard/recommender/pkg/storage"
)

// Store is the subset of pkg/storage used by the service.
type Store interface {
	EnsureSchema(ctx context.Context) error
	ReplaceCatalog(ctx context.Context, products []catalog.Product, entries map[string][]string) error
	LoadDocument(ctx context.Context) (catalog.Document, error)
	StoreRecommendation(ctx context.Context, rec storage.RecommendationRecord) (int64, error)
	ListRecommendations(ctx context.Context, itemID string, limit int) ([]storage.RecommendationRecord, error)
	Close() error
}

// Storage wraps the storage layer with recommender-specific logic
type Storage struct {
	store   Store
	cfg     Config
	breaker *gobreaker.CircuitBreaker[int64]
}

// Config for storage operations
type Config struct {
	PostgresDSN  string
	WriteResults bool
	// Connect forces a connection even when results are not written, e.g.
	// when the catalog itself lives in Postgres.
	Connect bool
	// BreakerFailures is the number of consecutive failed writes that opens
	// the breaker. Default: 5.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open. Default: 30s.
	BreakerTimeout time.Duration
}

// New creates a new Storage instance. Without WriteResults or Connect it
// returns a disabled Storage whose writes are no-ops.
func New(cfg Config) (*Storage, error) {
	if !cfg.WriteResults && !cfg.Connect {
		return &Storage{store: nil, cfg: cfg}, nil
	}

	store, err := storage.New(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	return NewWithStore(store, cfg), nil
}

// NewWithStore is used by tests and by callers that manage the connection.
func NewWithStore(store Store, cfg Config) *Storage {
	return &Storage{store: store, cfg: cfg, breaker: newBreaker(cfg)}
}

// newBreaker guards result writes so a failing database does not add its
// timeout to every request.
func newBreaker(cfg Config) *gobreaker.CircuitBreaker[int64] {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:        "recommendation-log",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

func (s *Storage) Enabled() bool {
	return s != nil && s.store != nil
}

// Close closes the storage connection
func (s *Storage) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Load implements recommend.Source from a single database snapshot.
func (s *Storage) Load(ctx context.Context) (*catalog.Catalog, *catalog.KnowledgeBase, error) {
	if s.store == nil {
		return nil, nil, fmt.Errorf("postgres catalog source requires a database connection")
	}

	start := time.Now()
	doc, err := s.store.LoadDocument(ctx)
	metrics.StorageLatency.WithLabelValues("load_document").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, nil, err
	}
	return doc.Build()
}

// Seed makes the database catalog match cat and kb. Products missing from
// cat are removed.
func (s *Storage) Seed(ctx context.Context, cat *catalog.Catalog, kb *catalog.KnowledgeBase) error {
	if s.store == nil {
		return fmt.Errorf("seed requires a database connection")
	}

	entries := make(map[string][]string, len(kb.Keys()))
	for _, key := range kb.Keys() {
		entries[key], _ = kb.Entries(key)
	}
	if err := s.store.ReplaceCatalog(ctx, cat.Products(), entries); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// StoreResult records an inference if result writing is enabled
func (s *Storage) StoreResult(ctx context.Context, requestID string, req recommend.Request, res recommend.Result) error {
	if s.store == nil || !s.cfg.WriteResults {
		return nil
	}

	rec := storage.RecommendationRecord{
		RequestID:  requestID,
		ItemID:     req.CurrentItemID,
		CartValue:  req.CartValue,
		Messages:   res.Messages,
		RulesFired: make([]string, 0, len(res.Fired)),
		ProductIDs: make([]string, 0, len(res.Products)),
	}
	if req.History != nil {
		days := req.History.LastPurchaseDays
		rec.LastPurchaseDays = &days
	}
	for _, rule := range res.Fired {
		rec.RulesFired = append(rec.RulesFired, string(rule))
	}
	for _, p := range res.Products {
		rec.ProductIDs = append(rec.ProductIDs, p.ProductID)
	}

	start := time.Now()
	_, err := s.breaker.Execute(func() (int64, error) {
		return s.store.StoreRecommendation(ctx, rec)
	})
	metrics.StorageLatency.WithLabelValues("store_recommendation").Observe(time.Since(start).Seconds())
	return err
}

// History returns recent audited inferences for an item.
func (s *Storage) History(ctx context.Context, itemID string, limit int) ([]storage.RecommendationRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	start := time.Now()
	records, err := s.store.ListRecommendations(ctx, itemID, limit)
	metrics.StorageLatency.WithLabelValues("list_recommendations").Observe(time.Since(start).Seconds())
	return records, err
}
