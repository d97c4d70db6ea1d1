// Package definition provides dependency graph analysis over entity definitions
package definition

import (
	"fmt"
	"sort"
	"strings"
)

// Graph represents the dependency graph between entity definitions. An entity
// depends on its base type and on the principals of its relationships.
type Graph struct {
	nodes []string
	known map[string]bool
	edges map[string][]string // entity -> dependencies
}

// NewInheritanceGraph builds a graph with an edge from every entity to its base
func NewInheritanceGraph(entities []Entity) *Graph {
	g := newGraph(entities)
	for _, e := range entities {
		if e.Base != "" {
			g.addEdge(Name(e.Name), Name(e.Base))
		}
	}
	return g
}

// NewRelationshipGraph builds a graph with an edge from every entity to the principals
// of its relationships and to its base
func NewRelationshipGraph(entities []Entity) *Graph {
	g := NewInheritanceGraph(entities)
	for _, e := range entities {
		for _, r := range e.Relationships {
			if Name(r.Principal) != Name(e.Name) {
				g.addEdge(Name(e.Name), Name(r.Principal))
			}
		}
	}
	return g
}

func newGraph(entities []Entity) *Graph {
	g := &Graph{
		known: make(map[string]bool),
		edges: make(map[string][]string),
	}
	for _, e := range entities {
		name := Name(e.Name)
		if !g.known[name] {
			g.known[name] = true
			g.nodes = append(g.nodes, name)
		}
	}
	return g
}

func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// DetectCycles returns every cycle reachable in declaration order
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !g.known[neighbor] {
				continue
			}
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if onStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}
	return cycles
}

// TopologicalSort returns entities with dependencies first, keeping declaration order
// among independent entities
func (g *Graph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int, len(g.nodes))
	reverse := make(map[string][]string)
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if g.known[dep] {
				outDegree[node]++
				reverse[dep] = append(reverse[dep], node)
			}
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		for _, dependent := range reverse[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, fmt.Errorf("circular dependency detected:\n%s", formatCycles(cycles))
		}
		return nil, fmt.Errorf("circular dependency detected")
	}
	return result, nil
}

// Dependencies returns the direct dependencies of an entity
func (g *Graph) Dependencies(entity string) []string {
	return append([]string(nil), g.edges[entity]...)
}

// Dependents returns the entities that depend directly on the given entity
func (g *Graph) Dependents(entity string) []string {
	var dependents []string
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == entity {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  Cycle %d: %s -> %s", i+1, strings.Join(cycle, " -> "), cycle[0])
	}
	return b.String()
}

// Report summarizes the dependencies of a set of definitions
type Report struct {
	TotalEntities int
	Dependencies  map[string][]string
	Dependents    map[string][]string
	Cycles        [][]string
	Order         []string
}

// Analyze builds a dependency report over relationship and inheritance edges.
// Relationship cycles are legal in a model and are reported, not rejected.
func Analyze(entities []Entity) *Report {
	g := NewRelationshipGraph(entities)
	report := &Report{
		TotalEntities: len(g.nodes),
		Dependencies:  make(map[string][]string),
		Dependents:    make(map[string][]string),
		Cycles:        g.DetectCycles(),
	}
	for _, node := range g.nodes {
		report.Dependencies[node] = g.Dependencies(node)
		report.Dependents[node] = g.Dependents(node)
	}
	if order, err := g.TopologicalSort(); err == nil {
		report.Order = order
	}
	return report
}

// String formats the report
func (r *Report) String() string {
	var b strings.Builder

	b.WriteString("Dependency Analysis Report\n")
	fmt.Fprintf(&b, "Total Entities: %d\n\n", r.TotalEntities)

	if len(r.Cycles) > 0 {
		b.WriteString("Circular dependencies:\n")
		b.WriteString(formatCycles(r.Cycles))
		b.WriteString("\n\n")
	}

	if len(r.Order) > 0 {
		b.WriteString("Dependency Order:\n")
		for i, entity := range r.Order {
			deps := append([]string(nil), r.Dependencies[entity]...)
			sort.Strings(deps)
			if len(deps) > 0 {
				fmt.Fprintf(&b, "  %d. %s (depends on: %s)\n", i+1, entity, strings.Join(deps, ", "))
			} else {
				fmt.Fprintf(&b, "  %d. %s (no dependencies)\n", i+1, entity)
			}
		}
	}

	return b.String()
}
