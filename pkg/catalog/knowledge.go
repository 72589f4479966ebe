package catalog

import (
	"slices"
	"sort"
)

// Bucket keys name business rule groups rather than products.
const (
	BucketClearance   = "clearance_items"
	BucketBestsellers = "bestsellers"
)

// KnowledgeBase maps a trigger key to an ordered list of recommended product
// ids. Keys are either product ids (direct cross-sell) or bucket names.
type KnowledgeBase struct {
	entries map[string][]string
}

func NewKnowledgeBase(entries map[string][]string) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{entries: make(map[string][]string, len(entries))}
	for key, ids := range entries {
		if key == "" {
			return nil, ErrMissingKey
		}
		kb.entries[key] = slices.Clone(ids)
	}
	return kb, nil
}

// Entries returns a copy of the ids stored under key. Unknown keys yield an
// empty sequence and false.
func (kb *KnowledgeBase) Entries(key string) ([]string, bool) {
	if kb == nil {
		return nil, false
	}
	ids, ok := kb.entries[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(ids), true
}

// Keys returns all keys in lexical order.
func (kb *KnowledgeBase) Keys() []string {
	if kb == nil {
		return nil
	}
	keys := make([]string, 0, len(kb.entries))
	for k := range kb.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dangling lists referenced ids that the catalog cannot resolve, keyed by the
// entry that references them. These are tolerated at inference time.
func (kb *KnowledgeBase) Dangling(c *Catalog) map[string][]string {
	out := map[string][]string{}
	for _, key := range kb.Keys() {
		for _, id := range kb.entries[key] {
			if _, ok := c.Resolve(id); !ok {
				out[key] = append(out[key], id)
			}
		}
	}
	return out
}
