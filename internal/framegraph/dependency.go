package framegraph

// Dependency orders Producer before Consumer.
type Dependency struct {
	Producer PassID
	Consumer PassID
}

// DependencySet records "must execute before" edges without duplicates.
// Insertion order is preserved.
type DependencySet struct {
	edges []Dependency
	seen  map[Dependency]struct{}
}

// Add appends d unless it is already present. It reports whether d was new.
func (s *DependencySet) Add(d Dependency) bool {
	if s.seen == nil {
		s.seen = make(map[Dependency]struct{})
	}
	if _, ok := s.seen[d]; ok {
		return false
	}
	s.seen[d] = struct{}{}
	s.edges = append(s.edges, d)
	return true
}

// Edges returns the recorded edges in insertion order.
func (s *DependencySet) Edges() []Dependency {
	return s.edges
}

// Len returns the number of distinct edges.
func (s *DependencySet) Len() int {
	return len(s.edges)
}

// adjacency builds successor lists for n passes. Successors are sorted by
// insertion order of the edges.
func (s *DependencySet) adjacency(n int) (succ [][]PassID, indegree []int) {
	succ = make([][]PassID, n)
	indegree = make([]int, n)
	for _, e := range s.edges {
		succ[e.Producer] = append(succ[e.Producer], e.Consumer)
		indegree[e.Consumer]++
	}
	return succ, indegree
}
