package recommend

import (
	"fmt"

	"github.com/fusionguard/recommender/pkg/catalog"
)

// RuleID names a single conditional check inside a rule set.
type RuleID string

const (
	RuleArbitrage     RuleID = "D1"
	RuleCrossSell     RuleID = "A"
	RuleFreeShipping  RuleID = "B1"
	RuleClearancePush RuleID = "B2"
	RuleReengagement  RuleID = "C1"
)

const freeShippingMessage = "BUSINESS ACTION: You qualify for **Free Premium Shipping!**"

// Thresholds parameterises the rule conditions. Comparison operators are fixed:
// D1 and C1 are strict, B1 is inclusive.
type Thresholds struct {
	ArbitrageProfit  float64 `yaml:"arbitrage_profit"`
	FreeShippingCart float64 `yaml:"free_shipping_cart"`
	InactiveDays     float64 `yaml:"inactive_days"`
	ClearanceBucket  string  `yaml:"clearance_bucket"`
	BestsellerBucket string  `yaml:"bestseller_bucket"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ArbitrageProfit:  30.00,
		FreeShippingCart: 100.00,
		InactiveDays:     90,
		ClearanceBucket:  catalog.BucketClearance,
		BestsellerBucket: catalog.BucketBestsellers,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	def := DefaultThresholds()
	if t.ArbitrageProfit == 0 {
		t.ArbitrageProfit = def.ArbitrageProfit
	}
	if t.FreeShippingCart == 0 {
		t.FreeShippingCart = def.FreeShippingCart
	}
	if t.InactiveDays == 0 {
		t.InactiveDays = def.InactiveDays
	}
	if t.ClearanceBucket == "" {
		t.ClearanceBucket = def.ClearanceBucket
	}
	if t.BestsellerBucket == "" {
		t.BestsellerBucket = def.BestsellerBucket
	}
	return t
}

// promotion is the outcome of rule set B. At most one branch is taken.
type promotion int

const (
	promotionNone promotion = iota
	promotionFreeShipping
	promotionClearance
)

// decidePromotion evaluates B1 first; the clearance tag is only inspected
// when the cart is below the free shipping threshold.
func (t Thresholds) decidePromotion(cartValue float64, item catalog.Product) promotion {
	switch {
	case cartValue >= t.FreeShippingCart:
		return promotionFreeShipping
	case item.HasTag(catalog.TagClearance):
		return promotionClearance
	default:
		return promotionNone
	}
}

func (t Thresholds) arbitrage(item catalog.Product) bool {
	return item.ProfitPotential > t.ArbitrageProfit
}

func (t Thresholds) inactive(h *History) bool {
	return h != nil && h.LastPurchaseDays > t.InactiveDays
}

func arbitrageMessage(item catalog.Product) string {
	return fmt.Sprintf(
		"FINANCIAL ACTION: High-Value Resale Opportunity for %s! Estimated Potential Profit: $%.2f",
		item.Name, item.ProfitPotential,
	)
}
