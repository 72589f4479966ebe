package recommend

import (
	"testing"

	"github.com/fusionguard/recommender/pkg/catalog"
)

func TestDecidePromotion(t *testing.T) {
	th := DefaultThresholds()
	clearance := catalog.Product{ID: "C", Tags: []string{catalog.TagClearance}}
	plain := catalog.Product{ID: "P"}

	tests := []struct {
		cart float64
		item catalog.Product
		want promotion
	}{
		{150, clearance, promotionFreeShipping},
		{100, plain, promotionFreeShipping},
		{99.99, clearance, promotionClearance},
		{99.99, plain, promotionNone},
		{-10, clearance, promotionClearance},
		{0, catalog.Product{}, promotionNone},
	}

	for _, tt := range tests {
		if got := th.decidePromotion(tt.cart, tt.item); got != tt.want {
			t.Errorf("decidePromotion(%.2f, %v) = %v, want %v", tt.cart, tt.item.Tags, got, tt.want)
		}
	}
}

func TestThresholdsWithDefaults(t *testing.T) {
	got := Thresholds{FreeShippingCart: 75, BestsellerBucket: "top"}.WithDefaults()

	if got.FreeShippingCart != 75 || got.BestsellerBucket != "top" {
		t.Errorf("explicit values overwritten: %+v", got)
	}
	if got.ArbitrageProfit != 30 || got.InactiveDays != 90 || got.ClearanceBucket != catalog.BucketClearance {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestArbitrageMessage(t *testing.T) {
	msg := arbitrageMessage(catalog.Product{Name: "Watch", ProfitPotential: 60})
	want := "FINANCIAL ACTION: High-Value Resale Opportunity for Watch! Estimated Potential Profit: $60.00"
	if msg != want {
		t.Errorf("got %q, want %q", msg, want)
	}
}

func TestIDSetKeepsFirstSeenOrder(t *testing.T) {
	s := newIDSet()

	if n := s.addAll([]string{"b", "a", "b"}); n != 2 {
		t.Errorf("expected 2 new ids, got %d", n)
	}
	if n := s.addAll([]string{"a", "c"}); n != 1 {
		t.Errorf("expected 1 new id, got %d", n)
	}

	want := []string{"b", "a", "c"}
	got := s.items()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
