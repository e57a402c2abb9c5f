// Package dag models the dependency order between generators: an edge runs
// from an upstream generator to every generator that reads its table.
package dag

import "sort"

// Node is one generator as the graph sees it.
type Node struct {
	Name         string
	Table        string
	Dependencies []string
}

// Graph is immutable once built.
type Graph struct {
	nodes    map[string]Node
	children map[string][]string // upstream name → dependents
	order    []string            // topological, computed by Build
}

// NewGraph allocates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]Node),
		children: make(map[string][]string),
	}
}

// AddNode registers a node by name.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.Name] = n
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parent, child string) {
	g.children[parent] = append(g.children[parent], child)
}

// Node returns a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Children returns the direct dependents of a node.
func (g *Graph) Children(name string) []string {
	return g.children[name]
}

// Roots returns the nodes without dependencies, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for name, n := range g.nodes {
		if len(n.Dependencies) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Upstream returns the nodes name depends on directly.
func (g *Graph) Upstream(name string) []Node {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.Dependencies))
	for _, dep := range n.Dependencies {
		out = append(out, g.nodes[dep])
	}
	return out
}

// Order returns every node name with each node after all its dependencies.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// NodeCount returns the total number of registered nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}
