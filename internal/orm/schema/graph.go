package schema

import (
	"fmt"
	"strings"
)

// CycleError is returned when elements depend on each other in a cycle
// that no ALTER-added foreign key breaks
type CycleError struct {
	Cycles [][]string
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected:\n%s", formatCycles(e.Cycles))
}

// DependencyGraph represents the dependency graph between schema elements
type DependencyGraph struct {
	nodes []Element
	index map[Element]int
	edges map[Element][]Element // element -> dependencies
}

// NewDependencyGraph builds the graph over nodes. Dependencies on elements
// outside nodes are ignored.
func NewDependencyGraph(nodes []Element) *DependencyGraph {
	g := &DependencyGraph{
		nodes: nodes,
		index: make(map[Element]int, len(nodes)),
		edges: make(map[Element][]Element, len(nodes)),
	}
	for i, n := range nodes {
		g.index[n] = i
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies() {
			if _, ok := g.index[dep]; ok && dep != n {
				g.edges[n] = append(g.edges[n], dep)
			}
		}
	}
	return g
}

// DetectCycles detects circular dependencies in the graph
func (g *DependencyGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[Element]bool)
	recursionStack := make(map[Element]bool)

	var dfs func(node Element, path []Element) bool
	dfs = func(node Element, path []Element) bool {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				if dfs(neighbor, path) {
					return true
				}
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, 0, len(path)-i)
						for _, el := range path[i:] {
							cycle = append(cycle, elementName(el))
						}
						cycles = append(cycles, cycle)
						break
					}
				}
				return true
			}
		}

		recursionStack[node] = false
		return false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns elements with dependencies first. Among elements
// that are ready at the same time, insertion order wins.
func (g *DependencyGraph) TopologicalSort() ([]Element, error) {
	outDegree := make(map[Element]int, len(g.nodes))
	reverseEdges := make(map[Element][]Element)
	for _, node := range g.nodes {
		outDegree[node] = len(g.edges[node])
		for _, dep := range g.edges[node] {
			reverseEdges[dep] = append(reverseEdges[dep], node)
		}
	}

	var queue []Element
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]Element, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		// reverseEdges lists dependents in insertion order
		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycles := g.DetectCycles()
		if len(cycles) == 0 {
			cycles = [][]string{g.unsorted(result)}
		}
		return nil, &CycleError{Cycles: cycles}
	}

	return result, nil
}

// Dependents returns the elements that depend directly on el
func (g *DependencyGraph) Dependents(el Element) []Element {
	var out []Element
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == el {
				out = append(out, node)
				break
			}
		}
	}
	return out
}

func (g *DependencyGraph) unsorted(sorted []Element) []string {
	done := make(map[Element]bool, len(sorted))
	for _, el := range sorted {
		done[el] = true
	}
	var names []string
	for _, el := range g.nodes {
		if !done[el] {
			names = append(names, elementName(el))
		}
	}
	return names
}

func elementName(el Element) string {
	return QualifiedName(el.SchemaName(), el.ObjectName())
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		if len(cycle) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
