package hookgraph

import "fmt"

// ValidateAcyclic reports ErrCycleDetected when the edges cannot be put in
// topological order. Endpoints missing from the node list still count.
func ValidateAcyclic(def Definition) error {
	order, ids := topoOrder(def)
	if len(order) == len(ids) {
		return nil
	}
	placed := make(map[string]bool, len(order))
	for _, id := range order {
		placed[id] = true
	}
	for _, id := range ids {
		if !placed[id] {
			return fmt.Errorf("%w: %d of %d nodes cannot be ordered, first %s",
				ErrCycleDetected, len(ids)-len(order), len(ids), id)
		}
	}
	return ErrCycleDetected
}

// topoOrder peels nodes with no unplaced inputs, in definition order. ids is
// every node id, edge endpoints included, in first-seen order.
func topoOrder(def Definition) (order, ids []string) {
	indegree := make(map[string]int)
	see := func(id string) {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
			ids = append(ids, id)
		}
	}
	for _, n := range def.Nodes {
		see(n.ID)
	}
	next := make(map[string][]string)
	for _, e := range def.Edges {
		see(e.Source)
		see(e.Target)
		next[e.Source] = append(next[e.Source], e.Target)
		indegree[e.Target]++
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, t := range next[id] {
			indegree[t]--
			if indegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	return order, ids
}
