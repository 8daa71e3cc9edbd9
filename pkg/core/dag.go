package core

// graphBuilder orders resource declarations by dependency. Explicit edges
// come from AddDependency calls; implied edges come from references found
// during token resolution. The emitted order is a topological sort with a
// stable tie-break: original discovery order.
type graphBuilder struct {
	order    []string
	index    map[string]int
	edges    map[string]map[string]struct{} // dependency -> dependents
	reverse  map[string]map[string]struct{} // dependent -> dependencies
	inDegree map[string]int
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		index:    make(map[string]int),
		edges:    make(map[string]map[string]struct{}),
		reverse:  make(map[string]map[string]struct{}),
		inDegree: make(map[string]int),
	}
}

// addNode registers a logical identifier in discovery order. Idempotent.
func (b *graphBuilder) addNode(id string) {
	if _, ok := b.index[id]; ok {
		return
	}
	b.index[id] = len(b.order)
	b.order = append(b.order, id)
	b.edges[id] = make(map[string]struct{})
	b.reverse[id] = make(map[string]struct{})
}

// addEdge records that from must be emitted before to. Unknown endpoints and
// self-edges are ignored; duplicates collapse.
func (b *graphBuilder) addEdge(from, to string) {
	if from == to {
		return
	}
	if _, ok := b.index[from]; !ok {
		return
	}
	if _, ok := b.index[to]; !ok {
		return
	}
	if _, dup := b.edges[from][to]; dup {
		return
	}
	b.edges[from][to] = struct{}{}
	b.reverse[to][from] = struct{}{}
	b.inDegree[to]++
}

// dependenciesOf returns the direct dependencies of id in discovery order.
func (b *graphBuilder) dependenciesOf(id string) []string {
	var deps []string
	for _, candidate := range b.order {
		if _, ok := b.reverse[id][candidate]; ok {
			deps = append(deps, candidate)
		}
	}
	return deps
}

// sort returns a dependency-consistent linearization using Kahn's algorithm,
// always picking the earliest-discovered ready node. Returns
// CyclicDependencyError when no linearization exists.
func (b *graphBuilder) sort() ([]string, error) {
	remaining := make(map[string]int, len(b.inDegree))
	for _, id := range b.order {
		remaining[id] = b.inDegree[id]
	}

	result := make([]string, 0, len(b.order))
	done := make(map[string]struct{}, len(b.order))
	for len(result) < len(b.order) {
		next := ""
		for _, id := range b.order {
			if _, emitted := done[id]; emitted {
				continue
			}
			if remaining[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, &CyclicDependencyError{Cycle: b.findCycle(done)}
		}
		result = append(result, next)
		done[next] = struct{}{}
		for dependent := range b.edges[next] {
			remaining[dependent]--
		}
	}
	return result, nil
}

// findCycle locates one dependency cycle among the nodes not yet emitted so
// the error names the participants. DFS with a recursion stack.
func (b *graphBuilder) findCycle(done map[string]struct{}) []string {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var dfs func(id string, path []string) []string
	dfs = func(id string, path []string) []string {
		visited[id] = true
		inStack[id] = true
		path = append(path, id)
		for _, dependent := range b.order {
			if _, ok := b.edges[id][dependent]; !ok {
				continue
			}
			if !visited[dependent] {
				if cycle := dfs(dependent, path); cycle != nil {
					return cycle
				}
			} else if inStack[dependent] {
				for i, seen := range path {
					if seen == dependent {
						return append(path[i:], dependent)
					}
				}
			}
		}
		inStack[id] = false
		return nil
	}

	for _, id := range b.order {
		if _, emitted := done[id]; emitted {
			continue
		}
		if !visited[id] {
			if cycle := dfs(id, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
