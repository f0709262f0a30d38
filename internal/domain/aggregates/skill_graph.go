package aggregates

import (
	"context"
	"encoding/json"

	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

var SkillGraphAggregateContract = Contract{
	Name:             "Learning.SkillGraphAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	LockScope:        "skill_graph_heads.course_id",
	Rejections:       []string{"self_reference", "duplicate", "cycle"},
	Notes:            "Owns acyclicity, course scoping and tombstone consistency of a course's skill prerequisite graph.",
}

// SkillGraphAggregate owns the structural invariants of one course's skill DAG.
// Every write locks the course head row, so writers on a course are serialized.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type SkillGraphAggregate interface {
	Aggregate

	// Sync replaces the course graph with the submitted target in one transaction.
	Sync(ctx context.Context, in SyncSkillGraphInput) (SyncSkillGraphResult, error)

	Connect(ctx context.Context, in ConnectSkillsInput) (EdgeMutationResult, error)
	Disconnect(ctx context.Context, in ConnectSkillsInput) (EdgeMutationResult, error)

	CreateSkill(ctx context.Context, in CreateSkillInput) (SkillMutationResult, error)
	UpdateAttributes(ctx context.Context, in UpdateSkillInput) (SkillMutationResult, error)
	UpdatePosition(ctx context.Context, in UpdatePositionInput) (SkillMutationResult, error)
	DeleteSkill(ctx context.Context, in DeleteSkillInput) (DeleteSkillResult, error)
}

// SkillNodeInput is one submitted skill. Optional attributes fall back to the
// column defaults (theory, beginner, 100 XP).
type SkillNodeInput struct {
	ID                  string          `json:"id" validate:"required,max=64,skill_id"`
	Name                string          `json:"name" validate:"required,max=255"`
	Description         *string         `json:"description"`
	Category            string          `json:"category" validate:"omitempty,oneof=theory practice review"`
	Content             json.RawMessage `json:"content,omitempty"`
	Difficulty          string          `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	XPReward            *int            `json:"xp_reward" validate:"omitempty,min=0"`
	RemedialMaterialURL *string         `json:"remedial_material_url" validate:"omitempty,max=500,url"`
	PositionX           int             `json:"position_x"`
	PositionY           int             `json:"position_y"`
	Prerequisites       []string        `json:"prerequisites"`
}

type SyncSkillGraphInput struct {
	CourseID string
	ActorID  string
	// BaseVersion, when set, must equal the current head version.
	BaseVersion *int64
	Skills      []SkillNodeInput
}

type SyncCounts struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Restored     int `json:"restored"`
	Deleted      int `json:"deleted"`
	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`
}

func (c SyncCounts) Total() int {
	return c.Created + c.Updated + c.Restored + c.Deleted + c.EdgesAdded + c.EdgesRemoved
}

// SkillChange is the before/after pair of one skill touched by a commit.
// Before is nil on create, After is nil on delete.
type SkillChange struct {
	Operation skills.AuditOperation
	SkillID   string
	Before    *skillgraph.Node
	After     *skillgraph.Node
}

type SyncSkillGraphResult struct {
	CourseID string
	Version  int64
	Skills   []skillgraph.Node
	Counts   SyncCounts
	Changes  []SkillChange
}

type ConnectSkillsInput struct {
	CourseID       string
	ActorID        string
	SkillID        string
	PrerequisiteID string
}

type EdgeMutationResult struct {
	CourseID       string
	SkillID        string
	PrerequisiteID string
	// Changed is false when Disconnect found no edge to remove.
	Changed bool
	Version int64
	Change  *SkillChange
}

type CreateSkillInput struct {
	CourseID string
	ActorID  string
	// Skill.ID may be empty; one is generated then.
	Skill SkillNodeInput
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// SkillPatch carries a partial attribute update. Nil pointers are left untouched.
type SkillPatch struct {
	Name                *string         `json:"name"`
	Description         OptionalString  `json:"description"`
	Category            *string         `json:"category"`
	Content             json.RawMessage `json:"content"`
	Difficulty          *string         `json:"difficulty"`
	XPReward            *int            `json:"xp_reward"`
	RemedialMaterialURL OptionalString  `json:"remedial_material_url"`
	PositionX           *int            `json:"position_x"`
	PositionY           *int            `json:"position_y"`
}

func (p SkillPatch) Empty() bool {
	return p.Name == nil && !p.Description.Set && p.Category == nil && p.Content == nil &&
		p.Difficulty == nil && p.XPReward == nil && !p.RemedialMaterialURL.Set &&
		p.PositionX == nil && p.PositionY == nil
}

// MarshalJSON emits only the fields that are set, with explicit nulls kept.
func (p SkillPatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.Category != nil {
		out["category"] = *p.Category
	}
	if p.Content != nil {
		out["content"] = p.Content
	}
	if p.Difficulty != nil {
		out["difficulty"] = *p.Difficulty
	}
	if p.XPReward != nil {
		out["xp_reward"] = *p.XPReward
	}
	if p.RemedialMaterialURL.Set {
		out["remedial_material_url"] = p.RemedialMaterialURL.Value
	}
	if p.PositionX != nil {
		out["position_x"] = *p.PositionX
	}
	if p.PositionY != nil {
		out["position_y"] = *p.PositionY
	}
	return json.Marshal(out)
}

// ApplyTo copies the set fields onto n. Prerequisites are never touched.
func (p SkillPatch) ApplyTo(n *skillgraph.Node) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Description.Set {
		n.Description = copyString(p.Description.Value)
	}
	if p.Category != nil {
		n.Category = skills.Category(*p.Category)
	}
	if p.Content != nil {
		if string(p.Content) == "null" {
			n.Content = nil
		} else {
			n.Content = append(json.RawMessage(nil), p.Content...)
		}
	}
	if p.Difficulty != nil {
		n.Difficulty = skills.Difficulty(*p.Difficulty)
	}
	if p.XPReward != nil {
		n.XPReward = *p.XPReward
	}
	if p.RemedialMaterialURL.Set {
		n.RemedialMaterialURL = copyString(p.RemedialMaterialURL.Value)
	}
	if p.PositionX != nil {
		n.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		n.PositionY = *p.PositionY
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type UpdateSkillInput struct {
	CourseID string
	ActorID  string
	SkillID  string
	Patch    SkillPatch
}

type UpdatePositionInput struct {
	CourseID  string
	ActorID   string
	SkillID   string
	PositionX int
	PositionY int
}

type SkillMutationResult struct {
	CourseID string
	Skill    skillgraph.Node
	Version  int64
	Change   *SkillChange
}

type DeleteSkillInput struct {
	CourseID string
	ActorID  string
	SkillID  string
}

type DeleteSkillResult struct {
	CourseID string
	SkillID  string
	// Dependents is how many skills transitively required the deleted one.
	Dependents int
	Version    int64
	Change     *SkillChange
}
