package recommend

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/pkg/catalog"
)

type History struct {
	LastPurchaseDays float64 `json:"last_purchase_days"`
}

type Request struct {
	CurrentItemID string   `json:"item_id"`
	CartValue     float64  `json:"cart_value"`
	History       *History `json:"history,omitempty"`
}

// NormalizeItemID applies the case and whitespace rules front ends enforce
// before a request reaches the engine. The engine itself matches ids exactly.
func NormalizeItemID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

type Recommendation struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
}

// Result holds action messages in firing order followed by the resolved
// products in first-seen order.
type Result struct {
	Messages []string         `json:"messages"`
	Products []Recommendation `json:"products"`
	Fired    []RuleID         `json:"rules_fired"`
}

// Lines flattens the result into messages followed by product names.
func (r Result) Lines() []string {
	lines := make([]string, 0, len(r.Messages)+len(r.Products))
	lines = append(lines, r.Messages...)
	for _, p := range r.Products {
		lines = append(lines, p.Name)
	}
	return lines
}

func (r Result) FiredRule(id RuleID) bool {
	for _, f := range r.Fired {
		if f == id {
			return true
		}
	}
	return false
}

// Engine evaluates the rule sets against one request at a time. It holds no
// mutable state; Infer may be called concurrently.
type Engine struct {
	catalog    *catalog.Catalog
	knowledge  *catalog.KnowledgeBase
	thresholds Thresholds
	log        zerolog.Logger
}

func NewEngine(cat *catalog.Catalog, kb *catalog.KnowledgeBase, thresholds Thresholds) *Engine {
	return &Engine{
		catalog:    cat,
		knowledge:  kb,
		thresholds: thresholds.WithDefaults(),
		log:        logging.With("engine"),
	}
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Engine) KnowledgeBase() *catalog.KnowledgeBase {
	return e.knowledge
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Infer runs rule sets D, A, B and C in priority order. It never fails:
// unknown items and unresolvable ids only shrink the result.
func (e *Engine) Infer(req Request) Result {
	var res Result
	ids := newIDSet()
	item := e.catalog.Lookup(req.CurrentItemID)

	fire := func(rule RuleID) {
		res.Fired = append(res.Fired, rule)
		e.log.Debug().
			Str("rule", string(rule)).
			Str("item_id", req.CurrentItemID).
			Msg("rule fired")
	}

	if e.thresholds.arbitrage(item) {
		fire(RuleArbitrage)
		res.Messages = append(res.Messages, arbitrageMessage(item))
	}

	if direct, ok := e.knowledge.Entries(req.CurrentItemID); ok {
		fire(RuleCrossSell)
		ids.addAll(direct)
	}

	switch e.thresholds.decidePromotion(req.CartValue, item) {
	case promotionFreeShipping:
		fire(RuleFreeShipping)
		res.Messages = append(res.Messages, freeShippingMessage)
	case promotionClearance:
		fire(RuleClearancePush)
		bucket, _ := e.knowledge.Entries(e.thresholds.ClearanceBucket)
		ids.addAll(bucket)
	}

	if e.thresholds.inactive(req.History) {
		fire(RuleReengagement)
		bucket, _ := e.knowledge.Entries(e.thresholds.BestsellerBucket)
		ids.addAll(bucket)
	}

	for _, id := range ids.items() {
		p, ok := e.catalog.Resolve(id)
		if !ok {
			continue
		}
		res.Products = append(res.Products, Recommendation{ProductID: p.ID, Name: p.Name})
	}

	return res
}
