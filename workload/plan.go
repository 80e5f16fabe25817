// Package workload holds the fixed operation sequence the benchmark times:
// bulk inserts, descendant retrieval, subtree moves and bulk deletes.
package workload

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// MaxDepth bounds how deep planned moves may push a subtree, well within
// what a 255 character materialized path can encode.
const MaxDepth = 32

type Config struct {
	Nodes  int
	Roots  int
	Moves  int
	Rounds int
	Seed   uint64
}

// WithDefaults fills unset fields: one root per 100 nodes, one move per 10
// nodes and three descendant rounds.
func (c Config) WithDefaults() Config {
	if c.Nodes <= 0 {
		c.Nodes = 1000
	}
	if c.Roots <= 0 {
		c.Roots = max(1, c.Nodes/100)
	}
	if c.Roots > c.Nodes {
		c.Roots = c.Nodes
	}
	if c.Moves <= 0 {
		c.Moves = c.Nodes / 10
	}
	if c.Rounds <= 0 {
		c.Rounds = 3
	}
	return c
}

// Plan is a deterministic operation sequence. Nodes are referenced by
// their insertion index.
type Plan struct {
	Labels []string
	Rounds int

	// Parents[i] is the index of the parent of node i, -1 for roots.
	Parents []int

	// Moves are (node, new parent) pairs, all valid when replayed in order.
	Moves [][2]int

	// Deletes visits every node once; nodes gone with an ancestor are skipped.
	Deletes []int
}

func NewPlan(c Config) *Plan {
	c = c.WithDefaults()
	seq := &sequence{state: c.Seed}
	faker := gofakeit.New(int64(c.Seed))

	p := &Plan{
		Labels:  make([]string, c.Nodes),
		Parents: make([]int, c.Nodes),
		Rounds:  c.Rounds,
	}
	for i := 0; i < c.Nodes; i++ {
		p.Labels[i] = fmt.Sprintf("%s %s %06d",
			strings.ToLower(faker.Adjective()), strings.ToLower(faker.Noun()), i)
		// node i starts a new tree whenever i*Roots/Nodes steps up
		if i == 0 || i*c.Roots/c.Nodes != (i-1)*c.Roots/c.Nodes {
			p.Parents[i] = -1
		} else {
			p.Parents[i] = seq.intn(i)
		}
	}

	shape := newShape(p.Parents)
	for attempts := 0; len(p.Moves) < c.Moves && attempts < 10*c.Moves; attempts++ {
		node, target := seq.intn(c.Nodes), seq.intn(c.Nodes)
		if !shape.canMove(node, target) {
			continue
		}
		shape.move(node, target)
		p.Moves = append(p.Moves, [2]int{node, target})
	}

	p.Deletes = make([]int, c.Nodes)
	for i := range p.Deletes {
		p.Deletes[i] = i
	}
	for i := len(p.Deletes) - 1; i > 0; i-- {
		j := seq.intn(i + 1)
		p.Deletes[i], p.Deletes[j] = p.Deletes[j], p.Deletes[i]
	}
	return p
}

func (p *Plan) Len() int { return len(p.Labels) }

// shape tracks parent links while moves are planned.
type shape struct {
	parents  []int
	children map[int]map[int]bool
}

func newShape(parents []int) *shape {
	s := &shape{
		parents:  append([]int(nil), parents...),
		children: make(map[int]map[int]bool),
	}
	for i, p := range parents {
		if p >= 0 {
			s.link(p, i)
		}
	}
	return s
}

func (s *shape) link(parent, child int) {
	if s.children[parent] == nil {
		s.children[parent] = make(map[int]bool)
	}
	s.children[parent][child] = true
}

func (s *shape) depth(i int) int {
	d := 1
	for s.parents[i] >= 0 {
		i = s.parents[i]
		d++
	}
	return d
}

// height is the number of levels in the subtree rooted at i.
func (s *shape) height(i int) int {
	h := 0
	for c := range s.children[i] {
		h = max(h, s.height(c))
	}
	return h + 1
}

func (s *shape) canMove(node, target int) bool {
	for cur := target; cur >= 0; cur = s.parents[cur] {
		if cur == node {
			return false
		}
	}
	return s.depth(target)+s.height(node) <= MaxDepth
}

func (s *shape) move(node, target int) {
	if old := s.parents[node]; old >= 0 {
		delete(s.children[old], node)
	}
	s.parents[node] = target
	s.link(target, node)
}
