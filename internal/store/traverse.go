package store

// Direction selects which way a traversal follows calls.
type Direction string

const (
	Outbound Direction = "outbound" // caller -> callee
	Inbound  Direction = "inbound"  // callee -> caller
)

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    string
	Visited []NodeHop
	Calls   []Call
}

// NodeHop is a node with its BFS hop distance.
type NodeHop struct {
	QualifiedName string
	Hop           int
}

type bfsQueue struct {
	qn  string
	hop int
}

// BFS performs a breadth-first traversal of the call graph from start.
// maxDepth caps the BFS depth, maxResults caps total visited nodes.
func (s *Store) BFS(project, start string, direction Direction, maxDepth, maxResults int) (*TraverseResult, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}
	if _, err := s.FindNodeByQN(project, start); err != nil {
		return nil, err
	}

	result := &TraverseResult{Root: start}
	visited := map[string]int{start: 0}
	queue := []bfsQueue{{start, 0}}

	for len(queue) > 0 && len(result.Visited) < maxResults {
		item := queue[0]
		queue = queue[1:]

		if item.hop >= maxDepth {
			continue
		}

		var calls []Call
		var err error
		if direction == Inbound {
			calls, err = s.Callers(project, item.qn)
		} else {
			calls, err = s.Callees(project, item.qn)
		}
		if err != nil {
			return nil, err
		}

		for _, c := range calls {
			next := c.Callee
			if direction == Inbound {
				next = c.Caller
			}
			result.Calls = append(result.Calls, c)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = item.hop + 1
			result.Visited = append(result.Visited, NodeHop{QualifiedName: next, Hop: item.hop + 1})
			queue = append(queue, bfsQueue{next, item.hop + 1})
			if len(result.Visited) >= maxResults {
				break
			}
		}
	}
	return result, nil
}
