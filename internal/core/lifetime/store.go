package lifetime

// store is the set of active instances whose exact type is one node.
// Appends are O(1); removal swaps the last element into the hole.
type store struct {
	items []Lifetime
	index map[Lifetime]int
	views []*List // every list that merges this store, own list first
}

func newStore() *store {
	return &store{index: make(map[Lifetime]int)}
}

func (s *store) len() int { return len(s.items) }

func (s *store) contains(x Lifetime) bool {
	_, ok := s.index[x]
	return ok
}

func (s *store) add(x Lifetime) bool {
	if _, ok := s.index[x]; ok {
		return false
	}
	i := len(s.items)
	s.items = append(s.items, x)
	s.index[x] = i
	for _, v := range s.views {
		v.added(s, i, x)
	}
	return true
}

func (s *store) remove(x Lifetime) bool {
	i, ok := s.index[x]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	var moved Lifetime
	if i != last {
		moved = s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items[last] = nil
	s.items = s.items[:last]
	delete(s.index, x)
	for _, v := range s.views {
		v.removed(s, i, last, x, moved)
	}
	return true
}
