package editor

import (
	"testing"

	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

func ids(g *skillgraph.Graph) []string { return g.IDs() }

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func add(id string) func(g *skillgraph.Graph) {
	return func(g *skillgraph.Graph) { g.Upsert(skillgraph.Node{ID: id, Name: id, Prerequisites: []string{}}) }
}

func TestHistoryUndoRedoScenario(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	h.Apply(add("skill1"), true)
	h.Apply(add("skill2"), true)
	if past, future := h.Depth(); past != 2 || future != 0 {
		t.Fatalf("depth after adds: want=2/0 got=%d/%d", past, future)
	}

	g, ok := h.Undo()
	if !ok || !sameIDs(ids(g), []string{"skill1"}) {
		t.Fatalf("undo: want=[skill1] got=%v ok=%v", ids(g), ok)
	}
	if past, future := h.Depth(); past != 1 || future != 1 {
		t.Fatalf("depth after undo: want=1/1 got=%d/%d", past, future)
	}

	g, ok = h.Redo()
	if !ok || !sameIDs(ids(g), []string{"skill1", "skill2"}) {
		t.Fatalf("redo: want=[skill1 skill2] got=%v ok=%v", ids(g), ok)
	}
	if h.CanRedo() {
		t.Fatalf("future must be empty after redo")
	}
}

func TestHistoryUndoThenRedoRestoresExactSnapshot(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	h.Apply(add("a"), true)
	h.Apply(func(g *skillgraph.Graph) {
		add("b")(g)
		g.AddPrerequisite("b", "a")
		g.SetPosition("b", 10, 20)
	}, true)
	before := h.Current()
	h.Undo()
	h.Redo()
	if !h.Current().Equal(before) {
		t.Fatalf("undo+redo: want=%v got=%v", before.Nodes(), h.Current().Nodes())
	}
}

func TestHistoryCheckpointedEditAfterUndoDropsFuture(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	h.Apply(add("a"), true)
	h.Apply(add("b"), true)
	h.Undo()
	if !h.CanRedo() {
		t.Fatalf("expected a redo entry")
	}
	h.Apply(add("c"), true)
	if h.CanRedo() {
		t.Fatalf("checkpointed apply must clear future")
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo must be a no-op")
	}
}

func TestHistoryApplyWithoutCheckpointLeavesHistory(t *testing.T) {
	h := NewHistory(skillgraph.New(skillgraph.Node{ID: "a"}), 0)
	for i := 0; i < 5; i++ {
		x := i
		h.Apply(func(g *skillgraph.Graph) { g.SetPosition("a", x, x) }, false)
	}
	if h.CanUndo() {
		t.Fatalf("non-checkpoint applies must not record history")
	}
	n, _ := h.Current().Node("a")
	if n.PositionX != 4 {
		t.Fatalf("position: want=4 got=%d", n.PositionX)
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	h := NewHistory(skillgraph.New(), 3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.Apply(add(id), true)
	}
	if past, _ := h.Depth(); past != 3 {
		t.Fatalf("past: want=3 got=%d", past)
	}
	var last *skillgraph.Graph
	for h.CanUndo() {
		last, _ = h.Undo()
	}
	// [] and [a] were evicted; the oldest survivor is [a b].
	if !sameIDs(ids(last), []string{"a", "b"}) {
		t.Fatalf("oldest snapshot: want=[a b] got=%v", ids(last))
	}
}

func TestHistoryDefaultCapacity(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	for i := 0; i < DefaultHistoryCapacity+10; i++ {
		x := i
		h.Apply(func(g *skillgraph.Graph) { g.Upsert(skillgraph.Node{ID: "n", XPReward: x}) }, true)
	}
	if past, _ := h.Depth(); past != DefaultHistoryCapacity {
		t.Fatalf("past: want=%d got=%d", DefaultHistoryCapacity, past)
	}
}

func TestHistoryNoChangeRecordsNothing(t *testing.T) {
	h := NewHistory(skillgraph.New(skillgraph.Node{ID: "a"}), 0)
	if h.Apply(func(g *skillgraph.Graph) { g.SetPosition("missing", 1, 1) }, true) {
		t.Fatalf("apply must report no change")
	}
	if h.CanUndo() {
		t.Fatalf("no-op apply must not checkpoint")
	}
}

func TestHistoryCheckpointSnapshotsWithoutChanging(t *testing.T) {
	h := NewHistory(skillgraph.New(skillgraph.Node{ID: "a"}), 0)
	h.Checkpoint()
	h.Checkpoint()
	if past, _ := h.Depth(); past != 1 {
		t.Fatalf("repeated checkpoint: want=1 got=%d", past)
	}
	h.Apply(func(g *skillgraph.Graph) { g.SetPosition("a", 50, 60) }, false)
	h.Apply(func(g *skillgraph.Graph) { g.SetPosition("a", 70, 80) }, false)
	g, _ := h.Undo()
	n, _ := g.Node("a")
	if n.PositionX != 0 || n.PositionY != 0 {
		t.Fatalf("undo gesture: want=(0,0) got=(%d,%d)", n.PositionX, n.PositionY)
	}
}

func TestHistorySnapshotsAreIsolated(t *testing.T) {
	h := NewHistory(skillgraph.New(skillgraph.Node{ID: "a", Prerequisites: []string{}}), 0)
	g := h.Current()
	g.AddPrerequisite("a", "zzz")
	n, _ := h.Current().Node("a")
	if len(n.Prerequisites) != 0 {
		t.Fatalf("caller mutation leaked into history: %v", n.Prerequisites)
	}
}

func TestHistoryDisabledSkipsCheckpoints(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	h.SetEnabled(false)
	h.Apply(add("a"), true)
	h.Checkpoint()
	if h.CanUndo() {
		t.Fatalf("disabled history must not record")
	}
	h.SetEnabled(true)
	h.Apply(add("b"), true)
	if !h.CanUndo() {
		t.Fatalf("re-enabled history must record")
	}
}

func TestHistoryReplaceAndReset(t *testing.T) {
	h := NewHistory(skillgraph.New(), 0)
	h.Apply(add("a"), true)
	h.Replace(skillgraph.New(skillgraph.Node{ID: "server"}))
	if !h.CanUndo() || !h.Current().Has("server") {
		t.Fatalf("replace must keep history and adopt graph")
	}
	h.Reset(skillgraph.New())
	if h.CanUndo() || h.CanRedo() || h.Current().Len() != 0 {
		t.Fatalf("reset must clear everything")
	}
}
