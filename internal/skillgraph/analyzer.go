package skillgraph

import "errors"

var (
	ErrSelfReference         = errors.New("A skill cannot be its own prerequisite.")
	ErrDuplicatePrerequisite = errors.New("This prerequisite relationship already exists.")
	ErrCircularDependency    = errors.New("Adding this prerequisite would create a circular dependency.")
)

// Rejection is the outcome of CheckProposal.
type Rejection int

const (
	Accepted Rejection = iota
	RejectSelfReference
	RejectDuplicate
	RejectCycle
)

func (r Rejection) Reason() string {
	switch r {
	case RejectSelfReference:
		return "self_reference"
	case RejectDuplicate:
		return "duplicate"
	case RejectCycle:
		return "cycle"
	default:
		return ""
	}
}

// Err returns the sentinel carrying the user-facing message, nil when accepted.
func (r Rejection) Err() error {
	switch r {
	case RejectSelfReference:
		return ErrSelfReference
	case RejectDuplicate:
		return ErrDuplicatePrerequisite
	case RejectCycle:
		return ErrCircularDependency
	default:
		return nil
	}
}

func (r Rejection) Message() string {
	if err := r.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// WouldCreateCycle reports whether making candidatePrereqID a prerequisite of
// dependentID closes a cycle. It walks upward from the candidate through each
// visited node's own prerequisites; reaching the dependent means the dependent
// is already (transitively) required by the candidate.
func (g *Graph) WouldCreateCycle(dependentID, candidatePrereqID string) bool {
	if dependentID == candidatePrereqID {
		return true
	}
	visited := Set{}
	stack := []string{candidatePrereqID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == dependentID {
			return true
		}
		if visited.Has(id) {
			continue
		}
		visited.Add(id)
		for _, p := range g.prerequisitesOf(id) {
			if !visited.Has(p) {
				stack = append(stack, p)
			}
		}
	}
	return false
}

// CheckProposal validates one new edge: self-reference first, then duplicate, then cycle.
func (g *Graph) CheckProposal(dependentID, prereqID string) Rejection {
	if dependentID == prereqID {
		return RejectSelfReference
	}
	if n, ok := g.lookup(dependentID); ok && g.nodes[n].HasPrerequisite(prereqID) {
		return RejectDuplicate
	}
	if g.WouldCreateCycle(dependentID, prereqID) {
		return RejectCycle
	}
	return Accepted
}

// Ancestors is the transitive closure of id's prerequisites, restricted to known nodes.
func (g *Graph) Ancestors(id string) Set {
	return g.walk(id, g.prerequisitesOf)
}

// Descendants is every node that transitively depends on id.
func (g *Graph) Descendants(id string) Set {
	dependents := g.dependentsIndex()
	return g.walk(id, func(n string) []string { return dependents[n] })
}

// ValidConnectionTargets lists the nodes that could take sourceID as a new
// prerequisite right now without a self-loop, a duplicate or a cycle.
func (g *Graph) ValidConnectionTargets(sourceID string) Set {
	out := Set{}
	if g.Len() == 0 {
		return out
	}
	ancestors := g.Ancestors(sourceID)
	for _, n := range g.nodes {
		if n.ID == sourceID || ancestors.Has(n.ID) || n.HasPrerequisite(sourceID) {
			continue
		}
		out.Add(n.ID)
	}
	return out
}

// PrerequisitesMet reports whether every direct prerequisite of id is in mastered.
// Unknown ids have no prerequisites and are always ready.
func (g *Graph) PrerequisitesMet(id string, mastered Set) bool {
	for _, p := range g.prerequisitesOf(id) {
		if !g.Has(p) {
			continue
		}
		if !mastered.Has(p) {
			return false
		}
	}
	return true
}

// TopologicalOrder returns prerequisites-first order via Kahn's algorithm.
// ok is false when the graph has a cycle; order then holds only the acyclic prefix.
func (g *Graph) TopologicalOrder() (order []string, ok bool) {
	order, _ = g.kahn()
	return order, len(order) == g.Len()
}

// FindCycle returns the ids of one cycle (first id repeated at the end), or nil
// when the graph is acyclic. Edges to unknown nodes are ignored.
func (g *Graph) FindCycle() []string {
	order, remaining := g.kahn()
	if len(order) == g.Len() {
		return nil
	}
	// Every node left after Kahn has an in-edge from another leftover node,
	// so following leftover prerequisites must revisit a node.
	var start string
	for _, n := range g.nodes {
		if remaining.Has(n.ID) {
			start = n.ID
			break
		}
	}
	seenAt := map[string]int{}
	path := []string{}
	cur := start
	for {
		if i, seen := seenAt[cur]; seen {
			cycle := append([]string{}, path[i:]...)
			reverse(cycle)
			return append(cycle, cycle[0])
		}
		seenAt[cur] = len(path)
		path = append(path, cur)
		next := ""
		for _, p := range g.prerequisitesOf(cur) {
			if remaining.Has(p) {
				next = p
				break
			}
		}
		if next == "" {
			return nil
		}
		cur = next
	}
}

func (g *Graph) kahn() ([]string, Set) {
	if g == nil {
		return nil, Set{}
	}
	inDegree := make(map[string]int, g.Len())
	for _, n := range g.nodes {
		inDegree[n.ID] = len(uniqueKnown(g, n.Prerequisites))
	}
	dependents := g.dependentsIndex()
	queue := make([]string, 0, g.Len())
	for _, n := range g.nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	order := make([]string, 0, g.Len())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, d := range dependents[id] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	remaining := Set{}
	for id, deg := range inDegree {
		if deg > 0 {
			remaining.Add(id)
		}
	}
	return order, remaining
}

// dependentsIndex maps each node to the known nodes listing it as a prerequisite.
func (g *Graph) dependentsIndex() map[string][]string {
	out := make(map[string][]string, g.Len())
	if g == nil {
		return out
	}
	for _, n := range g.nodes {
		for _, p := range uniqueKnown(g, n.Prerequisites) {
			out[p] = append(out[p], n.ID)
		}
	}
	return out
}

func (g *Graph) walk(start string, next func(id string) []string) Set {
	out := Set{}
	visited := NewSet(start)
	stack := append([]string{}, next(start)...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(id) {
			continue
		}
		visited.Add(id)
		if g.Has(id) {
			out.Add(id)
		}
		stack = append(stack, next(id)...)
	}
	return out
}

func uniqueKnown(g *Graph, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(Set, len(ids))
	for _, id := range ids {
		if seen.Has(id) || !g.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}

func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
