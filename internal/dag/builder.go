package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycle             = errors.New("dependency cycle")
	ErrDuplicateNode     = errors.New("duplicate generator")
)

// Declarer is anything that declares its place in the dependency order.
type Declarer interface {
	Name() string
	Table() string
	Dependencies() []string
}

// Build constructs the graph and checks it: every dependency must name a
// declared node, and the graph must be acyclic.
func Build[D Declarer](decls []D) (*Graph, error) {
	g := NewGraph()
	for _, d := range decls {
		if _, dup := g.nodes[d.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, d.Name())
		}
		g.AddNode(Node{
			Name:         d.Name(),
			Table:        d.Table(),
			Dependencies: append([]string(nil), d.Dependencies()...),
		})
	}
	for _, d := range decls {
		for _, dep := range d.Dependencies() {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, d.Name(), dep)
			}
			g.AddEdge(dep, d.Name())
		}
	}
	order, err := g.topological()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topological is Kahn's algorithm; ties resolve by name so the order is
// stable across runs.
func (g *Graph) topological() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.Dependencies)
	}
	ready := g.Roots()
	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		var next []string
		for _, child := range g.children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				next = append(next, child)
			}
		}
		ready = append(ready, next...)
		sort.Strings(ready)
	}
	if len(order) < len(g.nodes) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
