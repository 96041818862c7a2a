// Package graph is the static view of a transition graph: phase edges,
// reachability, bounded path enumeration and the field-writer index used by
// the validator.
package graph

import (
	"sort"

	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/cache"
	"github.com/aretw0/ludus/pkg/delta"
	"github.com/aretw0/ludus/pkg/statepath"
)

// DefaultMaxDepth bounds path enumeration when the caller passes zero.
const DefaultMaxDepth = 32

// WriterKind tells transitions and player actions apart.
type WriterKind string

const (
	WriterTransition WriterKind = "transition"
	WriterAction     WriterKind = "action"
)

// Writer is a program that may write a field.
type Writer struct {
	Kind WriterKind
	// ID is the transition id, or the action name for actions.
	ID    string
	Phase string
	// Writes is the normalized write set of the program.
	Writes []string
}

// Edge is one transition between phases.
type Edge struct {
	ID   string
	From string
	To   string
}

// Path is a sequence of transitions; Phases has one more entry than Edges.
type Path struct {
	Phases []string
	Edges  []string
}

// Graph is immutable once built and safe for concurrent use.
type Graph struct {
	phases   []string
	edges    []Edge
	outbound map[string][]Edge
	writers  []Writer
}

// Build derives the graph of a compiled artifact set.
func Build(c *artifact.Compiled) *Graph {
	g := &Graph{
		phases:   c.Phases(),
		outbound: make(map[string][]Edge),
	}
	for _, t := range c.Transitions {
		e := Edge{ID: t.ID(), From: t.Def.FromPhase, To: t.Def.ToPhase}
		g.edges = append(g.edges, e)
		g.outbound[e.From] = append(g.outbound[e.From], e)
		if len(t.Program) > 0 {
			g.writers = append(g.writers, Writer{
				Kind:   WriterTransition,
				ID:     t.ID(),
				Phase:  t.Def.FromPhase,
				Writes: delta.Writes(t.Program),
			})
		}
	}
	for _, a := range c.AllActions() {
		if len(a.Program) == 0 {
			continue
		}
		g.writers = append(g.writers, Writer{
			Kind:   WriterAction,
			ID:     a.Name(),
			Phase:  a.Phase,
			Writes: delta.Writes(a.Program),
		})
	}
	return g
}

// Phases returns the declared phases.
func (g *Graph) Phases() []string { return append([]string(nil), g.phases...) }

// Edges returns every transition in declaration order.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Outbound returns the edges leaving phase.
func (g *Graph) Outbound(phase string) []Edge { return g.outbound[phase] }

// Inbound returns the edges entering phase.
func (g *Graph) Inbound(phase string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == phase {
			out = append(out, e)
		}
	}
	return out
}

// Reachable returns every phase reachable from start, start included.
func (g *Graph) Reachable(start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.outbound[cur] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return visited
}

// CanReach reports whether to is reachable from from.
func (g *Graph) CanReach(from, to string) bool {
	return g.Reachable(from)[to]
}

// Paths enumerates simple paths from one phase to another, at most maxDepth
// transitions long. A phase is never revisited within a single path, so
// loops are cut rather than unrolled.
func (g *Graph) Paths(from, to string, maxDepth int) []Path {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var out []Path
	onPath := map[string]bool{from: true}
	phases := []string{from}
	var edges []string

	var walk func(cur string)
	walk = func(cur string) {
		if cur == to && len(edges) > 0 {
			out = append(out, Path{
				Phases: append([]string(nil), phases...),
				Edges:  append([]string(nil), edges...),
			})
			return
		}
		if len(edges) >= maxDepth {
			return
		}
		for _, e := range g.outbound[cur] {
			if e.To != to && onPath[e.To] {
				continue
			}
			onPath[e.To] = e.To != to
			phases = append(phases, e.To)
			edges = append(edges, e.ID)
			walk(e.To)
			edges = edges[:len(edges)-1]
			phases = phases[:len(phases)-1]
			delete(onPath, e.To)
		}
	}
	walk(from)
	return out
}

// Writers returns the programs whose write set overlaps the normalized path.
func (g *Graph) Writers(path string) []Writer {
	var out []Writer
	for _, w := range g.writers {
		for _, target := range w.Writes {
			if statepath.Overlaps(target, path) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// AllWriters returns every program with a non-empty write set.
func (g *Graph) AllWriters() []Writer { return append([]Writer(nil), g.writers...) }

// Sinks returns the declared phases without outbound edges, sorted.
func (g *Graph) Sinks() []string {
	var out []string
	for _, p := range g.phases {
		if len(g.outbound[p]) == 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Cache shares graphs between artifact versions whose transitions and
// instructions hash the same.
type Cache struct {
	graphs *cache.Bounded[string, *Graph]
}

// NewCache returns a graph cache holding at most capacity graphs.
func NewCache(capacity int) *Cache {
	return &Cache{graphs: cache.New[string, *Graph](capacity)}
}

// Get returns the graph for c, building it on a miss.
func (gc *Cache) Get(c *artifact.Compiled) *Graph {
	g, _ := gc.graphs.GetOrAdd(c.Hash, func() (*Graph, error) {
		return Build(c), nil
	})
	return g
}

// Len reports how many graphs are cached.
func (gc *Cache) Len() int { return gc.graphs.Len() }
