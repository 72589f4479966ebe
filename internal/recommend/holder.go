package recommend

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/metrics"
	"github.com/fusionguard/recommender/pkg/catalog"
)

// Source supplies a consistent catalog and knowledge base pair.
type Source interface {
	Load(ctx context.Context) (*catalog.Catalog, *catalog.KnowledgeBase, error)
}

// FileSource reads a YAML knowledge file.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) (*catalog.Catalog, *catalog.KnowledgeBase, error) {
	return catalog.LoadFile(f.Path)
}

// Holder publishes the current engine. Reload swaps in a fresh engine
// atomically; callers in flight keep the snapshot they started with.
type Holder struct {
	source     Source
	thresholds Thresholds
	current    atomic.Pointer[Engine]
}

func NewHolder(source Source, thresholds Thresholds) *Holder {
	return &Holder{source: source, thresholds: thresholds}
}

func (h *Holder) Reload(ctx context.Context) error {
	cat, kb, err := h.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load knowledge: %w", err)
	}

	for key, ids := range kb.Dangling(cat) {
		logging.Warn().Str("key", key).Strs("product_ids", ids).
			Msg("knowledge base references uncatalogued products")
	}

	h.current.Store(NewEngine(cat, kb, h.thresholds))
	metrics.CatalogProducts.Set(float64(cat.Len()))
	metrics.KnowledgeEntries.Set(float64(len(kb.Keys())))
	logging.Info().Int("products", cat.Len()).Int("entries", len(kb.Keys())).
		Msg("knowledge loaded")
	return nil
}

// Engine returns the current snapshot, or nil before the first Reload.
func (h *Holder) Engine() *Engine {
	return h.current.Load()
}

// Ready reports whether a knowledge snapshot has been loaded.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Infer evaluates req against a single snapshot and records metrics.
func (h *Holder) Infer(req Request) Result {
	engine := h.current.Load()
	if engine == nil {
		engine = NewEngine(nil, nil, h.thresholds)
	}

	start := time.Now()
	res := engine.Infer(req)
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())
	for _, rule := range res.Fired {
		metrics.RuleFirings.WithLabelValues(string(rule)).Inc()
	}
	metrics.RecommendedProducts.Add(float64(len(res.Products)))
	return res
}
