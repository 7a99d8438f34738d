package plan

import (
	"fmt"
	"sort"

	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/wcferrors"
)

// buildGraph constructs directed edges from each artifact's declared
// inputs to itself (spec.md §4.4 step 1), failing if an input names a
// non-existent artifact.
func buildGraph(artifacts map[string]runbook.Artifact) (*DAG, error) {
	nodes := make([]string, 0, len(artifacts))
	for id := range artifacts {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	adjacency := make(map[string][]string, len(artifacts))
	predecessors := make(map[string][]string, len(artifacts))
	var edges [][2]string

	for _, id := range nodes {
		a := artifacts[id]
		predecessors[id] = append(predecessors[id], []string(a.Inputs)...)
		for _, upstream := range a.Inputs {
			if _, ok := artifacts[upstream]; !ok {
				return nil, &wcferrors.ExecutorError{Reason: fmt.Sprintf("artifact %q references unknown input %q", id, upstream)}
			}
			adjacency[upstream] = append(adjacency[upstream], id)
			edges = append(edges, [2]string{upstream, id})
		}
	}

	dag := &DAG{Nodes: nodes, Edges: edges, Adjacency: adjacency, Predecessors: predecessors}

	if cycle := detectCycle(nodes, predecessors); cycle != nil {
		return nil, &wcferrors.CircularDependencyError{Cycle: cycle}
	}

	return dag, nil
}

// detectCycle runs a DFS with the standard white/gray/black colouring,
// visiting successors in sorted order for a deterministic cycle report.
func detectCycle(nodes []string, predecessors map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	successors := invertToSuccessors(nodes, predecessors)

	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, next := range successors[id] {
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				start := indexOf(path, next)
				cycle = append([]string{}, path[start:]...)
				cycle = append(cycle, next)
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range nodes {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func invertToSuccessors(nodes []string, predecessors map[string][]string) map[string][]string {
	successors := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		for _, pred := range predecessors[id] {
			successors[pred] = append(successors[pred], id)
		}
	}
	for _, list := range successors {
		sort.Strings(list)
	}
	return successors
}

func indexOf(path []string, id string) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}
	return 0
}

// topologicalLayers runs Kahn's algorithm, grouping nodes into layers where
// layer k contains every node whose predecessors are all in layers < k.
// Ties within a layer are broken lexicographically by artifact id (spec.md
// §4.4 step 4).
func topologicalLayers(nodes []string, predecessors map[string][]string) ([][]string, error) {
	remaining := make(map[string]int, len(nodes))
	for _, id := range nodes {
		remaining[id] = len(predecessors[id])
	}
	successors := invertToSuccessors(nodes, predecessors)

	var layers [][]string
	placed := make(map[string]bool, len(nodes))

	for len(placed) < len(nodes) {
		var ready []string
		for _, id := range nodes {
			if !placed[id] && remaining[id] == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// buildGraph already rejects cycles, so this should not happen;
			// guard defensively rather than loop forever.
			return nil, &wcferrors.ExecutorError{Reason: "topological layering made no progress; unresolved dependency"}
		}
		sort.Strings(ready)
		layers = append(layers, ready)
		for _, id := range ready {
			placed[id] = true
		}
		for _, id := range ready {
			for _, next := range successors[id] {
				remaining[next]--
			}
		}
	}

	return layers, nil
}
