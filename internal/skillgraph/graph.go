package skillgraph

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
)

// Node is one skill with its display attributes and direct prerequisite ids.
type Node struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         *string           `json:"description"`
	Category            skills.Category   `json:"category"`
	Content             json.RawMessage   `json:"content,omitempty"`
	Difficulty          skills.Difficulty `json:"difficulty"`
	XPReward            int               `json:"xp_reward"`
	RemedialMaterialURL *string           `json:"remedial_material_url"`
	PositionX           int               `json:"position_x"`
	PositionY           int               `json:"position_y"`
	Prerequisites       []string          `json:"prerequisites"`
}

// Clone returns a deep copy so snapshots never share slices or pointers.
func (n Node) Clone() Node {
	out := n
	if n.Description != nil {
		d := *n.Description
		out.Description = &d
	}
	if n.RemedialMaterialURL != nil {
		u := *n.RemedialMaterialURL
		out.RemedialMaterialURL = &u
	}
	if n.Content != nil {
		out.Content = append(json.RawMessage(nil), n.Content...)
	}
	out.Prerequisites = append([]string{}, n.Prerequisites...)
	return out
}

func (n Node) Equal(o Node) bool {
	if n.ID != o.ID || n.Name != o.Name || n.Category != o.Category || n.Difficulty != o.Difficulty ||
		n.XPReward != o.XPReward || n.PositionX != o.PositionX || n.PositionY != o.PositionY {
		return false
	}
	if !equalStringPtr(n.Description, o.Description) || !equalStringPtr(n.RemedialMaterialURL, o.RemedialMaterialURL) {
		return false
	}
	if !equalJSON(n.Content, o.Content) {
		return false
	}
	if len(n.Prerequisites) != len(o.Prerequisites) {
		return false
	}
	for i := range n.Prerequisites {
		if n.Prerequisites[i] != o.Prerequisites[i] {
			return false
		}
	}
	return true
}

// EquivalentTo is Equal with prerequisite lists compared as sets.
func (n Node) EquivalentTo(o Node) bool {
	a, b := n.Clone(), o.Clone()
	sort.Strings(a.Prerequisites)
	sort.Strings(b.Prerequisites)
	return a.Equal(b)
}

func (n Node) HasPrerequisite(id string) bool {
	for _, p := range n.Prerequisites {
		if p == id {
			return true
		}
	}
	return false
}

// Graph is an ordered set of nodes keyed by id. The zero value is an empty graph.
type Graph struct {
	nodes []Node
	index map[string]int
}

// New builds a graph from nodes. A later node with a repeated id replaces the earlier one.
func New(nodes ...Node) *Graph {
	g := &Graph{}
	for _, n := range nodes {
		g.Upsert(n)
	}
	return g
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

func (g *Graph) Has(id string) bool {
	_, ok := g.lookup(id)
	return ok
}

func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.lookup(id)
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].Clone(), true
}

// Nodes returns deep copies of every node in insertion order.
func (g *Graph) Nodes() []Node {
	if g == nil {
		return []Node{}
	}
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Clone())
	}
	return out
}

func (g *Graph) IDs() []string {
	if g == nil {
		return []string{}
	}
	out := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.ID)
	}
	return out
}

func (g *Graph) Clone() *Graph {
	if g == nil {
		return &Graph{}
	}
	return New(g.Nodes()...)
}

// Equal reports whether both graphs hold the same nodes in the same order.
func (g *Graph) Equal(o *Graph) bool {
	if g.Len() != o.Len() {
		return false
	}
	for i := 0; i < g.Len(); i++ {
		if !g.nodes[i].Equal(o.nodes[i]) {
			return false
		}
	}
	return true
}

// Upsert inserts n or replaces the node with the same id in place.
func (g *Graph) Upsert(n Node) {
	if g.index == nil {
		g.index = map[string]int{}
	}
	n = n.Clone()
	if i, ok := g.index[n.ID]; ok {
		g.nodes[i] = n
		return
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// Update applies fn to the stored node. Returns false when id is unknown.
func (g *Graph) Update(id string, fn func(n *Node)) bool {
	i, ok := g.lookup(id)
	if !ok {
		return false
	}
	fn(&g.nodes[i])
	return true
}

// Remove deletes the node and strips it from every other node's prerequisites.
func (g *Graph) Remove(id string) bool {
	i, ok := g.lookup(id)
	if !ok {
		return false
	}
	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	g.reindex()
	for j := range g.nodes {
		g.nodes[j].Prerequisites = without(g.nodes[j].Prerequisites, id)
	}
	return true
}

func (g *Graph) SetPosition(id string, x, y int) bool {
	return g.Update(id, func(n *Node) {
		n.PositionX = x
		n.PositionY = y
	})
}

// AddPrerequisite records prereqID as a prerequisite of dependentID. It does not
// check acyclicity; callers run CheckProposal first.
func (g *Graph) AddPrerequisite(dependentID, prereqID string) bool {
	return g.Update(dependentID, func(n *Node) {
		if !n.HasPrerequisite(prereqID) {
			n.Prerequisites = append(n.Prerequisites, prereqID)
		}
	})
}

func (g *Graph) RemovePrerequisite(dependentID, prereqID string) bool {
	return g.Update(dependentID, func(n *Node) {
		n.Prerequisites = without(n.Prerequisites, prereqID)
	})
}

func (g *Graph) lookup(id string) (int, bool) {
	if g == nil || g.index == nil {
		return 0, false
	}
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		g.index[n.ID] = i
	}
}

func (g *Graph) prerequisitesOf(id string) []string {
	i, ok := g.lookup(id)
	if !ok {
		return nil
	}
	return g.nodes[i].Prerequisites
}

func without(ids []string, drop string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// equalJSON compares payloads by value; stores such as jsonb reformat and reorder keys.
func equalJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
