package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"

	"fleet-manifests/internal/types"
)

// IncludeGraph builds the directed include graph reachable from start.
// Conditions are ignored: an include edge exists whether or not it
// would be taken for a given client.
func IncludeGraph(start string, includes func(name string) []string) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed())
	if err := g.AddVertex(start); err != nil {
		return nil, err
	}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, next := range includes(name) {
			err := g.AddVertex(next)
			switch {
			case err == nil:
				queue = append(queue, next)
			case !errors.Is(err, graph.ErrVertexAlreadyExists):
				return nil, err
			}
			if err := g.AddEdge(name, next); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	return g, nil
}

// FindCycle returns an include path that leads from start back to start,
// or nil when there is none.
func FindCycle(start string, includes func(name string) []string) []string {
	direct := includes(start)
	if slices.Contains(direct, start) {
		return []string{start, start}
	}
	g, err := IncludeGraph(start, includes)
	if err != nil {
		return nil
	}
	for _, next := range direct {
		path, err := graph.ShortestPath(g, next, start)
		if err != nil {
			continue
		}
		return append([]string{start}, path...)
	}
	return nil
}

// ManifestIncludes adapts a manifest map to FindCycle.
func ManifestIncludes(manifests map[string]types.Manifest) func(string) []string {
	return func(name string) []string {
		manifest, ok := manifests[name]
		if !ok {
			return nil
		}
		return manifest.IncludeNames()
	}
}

// NewCycleError names every manifest on the cycle path.
func NewCycleError(path []string) error {
	return types.NewError(types.KindCycle, fmt.Sprintf("include cycle: %s", strings.Join(path, " -> ")), path...)
}
