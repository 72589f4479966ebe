package storage

import "time"

// RecommendationRecord is one audited inference.
type RecommendationRecord struct {
	ID               int64
	RequestID        string
	ItemID           string
	CartValue        float64
	LastPurchaseDays *float64
	RulesFired       []string
	Messages         []string
	ProductIDs       []string
	CreatedAt        time.Time
}
