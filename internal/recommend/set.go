package recommend

// idSet is a deduplicating collection that remembers first-seen order.
type idSet struct {
	seen  map[string]struct{}
	order []string
}

func newIDSet() *idSet {
	return &idSet{seen: map[string]struct{}{}}
}

// addAll inserts ids not seen before and returns how many were new.
func (s *idSet) addAll(ids []string) int {
	added := 0
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.order = append(s.order, id)
		added++
	}
	return added
}

func (s *idSet) items() []string {
	return s.order
}
