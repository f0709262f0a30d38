package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

var ErrSkillNotFound = errors.New("skill is not in the working graph")

const (
	spawnMin        = 200
	spawnMax        = 400
	duplicateDX     = 100
	duplicateDY     = 50
	defaultXPReward = 100
)

// Snapshot is the server's view of a course graph.
type Snapshot struct {
	Version int64
	Nodes   []skillgraph.Node
}

// GraphClient is the remote side of an editing session. Errors carrying
// domainagg codes let the session tell a stale skill (not_found) or a
// rejected edge (invariant_violation) from a transport failure.
type GraphClient interface {
	LoadGraph(ctx context.Context, courseID string) (Snapshot, error)
	Sync(ctx context.Context, courseID string, baseVersion *int64, nodes []skillgraph.Node) (Snapshot, error)
	Connect(ctx context.Context, courseID, skillID, prerequisiteID string) error
	Disconnect(ctx context.Context, courseID, skillID, prerequisiteID string) error
	UpdatePosition(ctx context.Context, courseID, skillID string, x, y int) error
	UpdateAttributes(ctx context.Context, courseID, skillID string, patch domainagg.SkillPatch) error
}

type SessionOptions struct {
	HistoryCapacity int
	// Rand picks spawn positions for new skills. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Status is what an editor shows next to the canvas.
type Status struct {
	// HasUnsaved is true while a drag has positions not yet flushed.
	HasUnsaved bool
	// Saving is true while writes are queued or in flight.
	Saving  bool
	Version int64
	LastErr error
}

type point struct{ x, y int }

type job struct {
	ctx context.Context
	op  string
	run func(ctx context.Context) error
}

// Session is one user's editing session over one course graph. History is
// the only mutator of the working copy; writes to the server are queued and
// sent one at a time in the order the edits were made.
type Session struct {
	log      *logger.Logger
	client   GraphClient
	courseID string
	history  *History

	mu       sync.Mutex
	rnd      *rand.Rand
	seq      uint64
	version  int64
	pending  map[string]point
	queue    []job
	draining bool
	inflight int
	lastErr  error

	writes  sync.WaitGroup
	reloads singleflight.Group
}

func NewSession(baseLog *logger.Logger, client GraphClient, courseID string, opts SessionOptions) *Session {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{
		log:      baseLog.With("service", "EditorSession", "course_id", courseID),
		client:   client,
		courseID: courseID,
		history:  NewHistory(skillgraph.New(), opts.HistoryCapacity),
		rnd:      rnd,
		pending:  map[string]point{},
	}
}

// Open loads the course graph and starts a fresh history.
func (s *Session) Open(ctx context.Context) error {
	snap, err := s.client.LoadGraph(ctx, s.courseID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset(skillgraph.New(snap.Nodes...))
	s.version = snap.Version
	s.seq++
	s.pending = map[string]point{}
	return nil
}

func (s *Session) Graph() *skillgraph.Graph { return s.history.Current() }

func (s *Session) History() *History { return s.history }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		HasUnsaved: len(s.pending) > 0,
		Saving:     s.inflight > 0,
		Version:    s.version,
		LastErr:    s.lastErr,
	}
}

// Wait blocks until every queued write has finished.
func (s *Session) Wait() { s.writes.Wait() }

// CreateSkill adds a placeholder skill at a random spot and syncs. A blank
// name becomes the next "New Skill N".
func (s *Session) CreateSkill(ctx context.Context, name string) (skillgraph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		names := []string{}
		for _, n := range s.history.Current().Nodes() {
			names = append(names, n.Name)
		}
		name = skillgraph.NextDefaultName(names)
	}
	desc := skillgraph.DefaultDescription(name)
	node := skillgraph.Node{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   &desc,
		Category:      skills.CategoryTheory,
		Difficulty:    skills.DifficultyBeginner,
		XPReward:      defaultXPReward,
		PositionX:     spawnMin + s.rnd.Intn(spawnMax-spawnMin+1),
		PositionY:     spawnMin + s.rnd.Intn(spawnMax-spawnMin+1),
		Prerequisites: []string{},
	}
	s.mutateLocked(func(g *skillgraph.Graph) { g.Upsert(node) }, true)
	s.enqueueSyncLocked(ctx)
	return node, nil
}

// DeleteSkill removes id and every edge touching it. dependents is how many
// skills transitively required it before the delete.
func (s *Session) DeleteSkill(ctx context.Context, id string) (dependents int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.history.Current()
	if !g.Has(id) {
		return 0, ErrSkillNotFound
	}
	dependents = len(g.Descendants(id))
	s.mutateLocked(func(g *skillgraph.Graph) { g.Remove(id) }, true)
	delete(s.pending, id)
	s.enqueueSyncLocked(ctx)
	return dependents, nil
}

// DuplicateSkill copies id, prerequisites included, offset from the original.
func (s *Session) DuplicateSkill(ctx context.Context, id string) (skillgraph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.history.Current().Node(id)
	if !ok {
		return skillgraph.Node{}, ErrSkillNotFound
	}
	dup := src.Clone()
	dup.ID = uuid.NewString()
	dup.Name = skillgraph.CopyName(src.Name)
	dup.PositionX += duplicateDX
	dup.PositionY += duplicateDY
	s.mutateLocked(func(g *skillgraph.Graph) { g.Upsert(dup) }, true)
	s.enqueueSyncLocked(ctx)
	return dup, nil
}

// Undo restores the previous snapshot and pushes it to the server as a full sync.
func (s *Session) Undo(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history.Undo(); !ok {
		return false
	}
	s.seq++
	s.enqueueSyncLocked(ctx)
	return true
}

func (s *Session) Redo(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history.Redo(); !ok {
		return false
	}
	s.seq++
	s.enqueueSyncLocked(ctx)
	return true
}

// Connect makes prerequisiteID a prerequisite of skillID. The local analyzer
// rejects self references, duplicates and cycles before anything is sent.
func (s *Session) Connect(ctx context.Context, skillID, prerequisiteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.history.Current()
	if !g.Has(skillID) || !g.Has(prerequisiteID) {
		return ErrSkillNotFound
	}
	if rej := g.CheckProposal(skillID, prerequisiteID); rej != skillgraph.Accepted {
		return domainagg.NewInvariantError("Editor.Connect", rej.Reason(), rej.Message(), rej.Err())
	}
	s.mutateLocked(func(g *skillgraph.Graph) { g.AddPrerequisite(skillID, prerequisiteID) }, true)
	s.enqueueLocked(ctx, "connect", func(ctx context.Context) error {
		return s.client.Connect(ctx, s.courseID, skillID, prerequisiteID)
	})
	return nil
}

func (s *Session) Disconnect(ctx context.Context, skillID, prerequisiteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.history.Current().Node(skillID)
	if !ok {
		return ErrSkillNotFound
	}
	if !n.HasPrerequisite(prerequisiteID) {
		return nil
	}
	s.mutateLocked(func(g *skillgraph.Graph) { g.RemovePrerequisite(skillID, prerequisiteID) }, true)
	s.enqueueLocked(ctx, "disconnect", func(ctx context.Context) error {
		return s.client.Disconnect(ctx, s.courseID, skillID, prerequisiteID)
	})
	return nil
}

// BeginDrag checkpoints so the whole gesture undoes as one step.
func (s *Session) BeginDrag() { s.history.Checkpoint() }

// Drag moves id locally and remembers the latest position for EndDrag.
func (s *Session) Drag(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := point{x: int(math.Round(x)), y: int(math.Round(y))}
	var found bool
	s.mutateLocked(func(g *skillgraph.Graph) { found = g.SetPosition(id, p.x, p.y) }, false)
	if !found {
		return ErrSkillNotFound
	}
	s.pending[id] = p
	return nil
}

// EndDrag sends one position write per dragged node.
func (s *Session) EndDrag(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := s.pending[id]
		s.enqueueLocked(ctx, "update_position", func(ctx context.Context) error {
			return s.client.UpdatePosition(ctx, s.courseID, id, p.x, p.y)
		})
	}
	s.pending = map[string]point{}
}

// BeginEdit checkpoints before an inline edit starts.
func (s *Session) BeginEdit() { s.history.Checkpoint() }

// UpdateAttributes applies patch locally without a checkpoint and sends it.
// A failed write leaves the local value in place.
func (s *Session) UpdateAttributes(ctx context.Context, id string, patch domainagg.SkillPatch) error {
	if patch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.history.Current().Has(id) {
		return ErrSkillNotFound
	}
	s.mutateLocked(func(g *skillgraph.Graph) { g.Update(id, patch.ApplyTo) }, false)
	s.enqueueLocked(ctx, "update_attributes", func(ctx context.Context) error {
		return s.client.UpdateAttributes(ctx, s.courseID, id, patch)
	})
	return nil
}

// Reload replaces the working copy with the server's graph without touching
// history. Concurrent callers share one request.
func (s *Session) Reload(ctx context.Context) error {
	_, err, _ := s.reloads.Do("reload", func() (any, error) {
		snap, err := s.client.LoadGraph(ctx, s.courseID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		g := skillgraph.New(snap.Nodes...)
		s.history.Replace(g)
		s.version = snap.Version
		s.seq++
		for id := range s.pending {
			if !g.Has(id) {
				delete(s.pending, id)
			}
		}
		return nil, nil
	})
	return err
}

func (s *Session) mutateLocked(fn func(g *skillgraph.Graph), checkpoint bool) {
	if s.history.Apply(fn, checkpoint) {
		s.seq++
	}
}

// enqueueSyncLocked queues a full sync of the graph as it is now. The server
// result is adopted only if nothing was edited after this point.
func (s *Session) enqueueSyncLocked(ctx context.Context) {
	seq := s.seq
	nodes := s.history.Current().Nodes()
	s.enqueueLocked(ctx, "sync", func(ctx context.Context) error {
		snap, err := s.client.Sync(ctx, s.courseID, nil, nodes)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.version = snap.Version
		if s.seq == seq {
			s.history.Replace(skillgraph.New(snap.Nodes...))
		}
		return nil
	})
}

func (s *Session) enqueueLocked(ctx context.Context, op string, run func(ctx context.Context) error) {
	s.writes.Add(1)
	s.inflight++
	s.queue = append(s.queue, job{ctx: ctx, op: op, run: run})
	if !s.draining {
		s.draining = true
		go s.drain()
	}
}

func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := j.run(j.ctx)
		s.finish(j, err)
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.writes.Done()
	}
}

func (s *Session) finish(j job, err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err == nil {
		return
	}
	code := domainagg.CodeOf(err)
	s.log.Warn("Editor write failed", "op", j.op, "code", string(code), "error", err)
	switch code {
	case domainagg.CodeNotFound, domainagg.CodeInvariantViolation:
		// The working copy no longer matches the server.
		if rerr := s.Reload(j.ctx); rerr != nil {
			s.mu.Lock()
			s.lastErr = fmt.Errorf("%s failed: %w; reload failed: %v", j.op, err, rerr)
			s.mu.Unlock()
		}
	}
}
