package aggregates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	types "github.com/yungbote/skillgraph-backend/internal/domain"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

type SkillGraphAggregateDeps struct {
	Base BaseDeps

	Skills  repos.SkillRepo
	Prereqs repos.SkillPrerequisiteRepo
	Heads   repos.SkillGraphHeadRepo
}

type skillGraphAggregate struct {
	deps SkillGraphAggregateDeps
}

func NewSkillGraphAggregate(deps SkillGraphAggregateDeps) domainagg.SkillGraphAggregate {
	deps.Base = deps.Base.withDefaults()
	return &skillGraphAggregate{deps: deps}
}

func (a *skillGraphAggregate) Contract() domainagg.Contract {
	return domainagg.SkillGraphAggregateContract
}

func (a *skillGraphAggregate) configured(op string) error {
	if a.deps.Skills == nil || a.deps.Prereqs == nil || a.deps.Heads == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "skill graph aggregate repos not configured", nil)
	}
	return nil
}

func (a *skillGraphAggregate) Sync(ctx context.Context, in domainagg.SyncSkillGraphInput) (domainagg.SyncSkillGraphResult, error) {
	const op = "Learning.SkillGraph.Sync"
	var out domainagg.SyncSkillGraphResult
	courseID := strings.TrimSpace(in.CourseID)
	if courseID == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	inputs := make([]domainagg.SkillNodeInput, 0, len(in.Skills))
	for _, n := range in.Skills {
		inputs = append(inputs, normalizeInput(n))
	}
	if err := validateSyncPayload(op, inputs); err != nil {
		return out, err
	}
	target := skillgraph.New()
	for _, n := range inputs {
		target.Upsert(nodeFromInput(n))
	}
	keep := target.IDs()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		head, err := a.deps.Heads.LockByCourse(dbc, courseID)
		if err != nil {
			return err
		}
		if in.BaseVersion != nil {
			if err := RequireVersionMatch(head.Version, *in.BaseVersion); err != nil {
				return err
			}
		}
		if cycle := target.FindCycle(); cycle != nil {
			return domainagg.NewInvariantError(op, skillgraph.RejectCycle.Reason(), skillgraph.ErrCircularDependency.Error(),
				fmt.Errorf("cycle through %s", strings.Join(cycle, " -> ")))
		}

		before, err := a.loadGraph(dbc, courseID)
		if err != nil {
			return err
		}
		existing, err := a.deps.Skills.GetByIDsUnscoped(dbc, keep)
		if err != nil {
			return err
		}
		byID := make(map[string]*types.Skill, len(existing))
		for _, row := range existing {
			if row.CourseID != courseID {
				return ConflictError(fmt.Sprintf("skill %s belongs to another course", row.ID))
			}
			byID[row.ID] = row
		}

		var counts domainagg.SyncCounts
		var changes []domainagg.SkillChange

		// Delete pass.
		deleted, err := a.deps.Skills.SoftDeleteExcept(dbc, courseID, keep)
		if err != nil {
			return err
		}
		// Tombstoned skills keep their edge rows so a later sync can restore them.
		for _, row := range deleted {
			prev, _ := before.Node(row.ID)
			changes = append(changes, domainagg.SkillChange{Operation: skills.AuditDelete, SkillID: row.ID, Before: &prev})
		}
		counts.Deleted = len(deleted)

		// Upsert pass.
		now := time.Now().UTC()
		ops := make(map[string]skills.AuditOperation, len(keep))
		var created []*types.Skill
		for _, n := range target.Nodes() {
			row, found := byID[n.ID]
			switch {
			case !found:
				created = append(created, newSkillRow(courseID, n, now))
				ops[n.ID] = skills.AuditCreate
				counts.Created++
			case row.DeletedAt.Valid:
				applyNode(row, n, now)
				if err := a.deps.Skills.Overwrite(dbc, row); err != nil {
					return err
				}
				ops[n.ID] = skills.AuditRestore
				counts.Restored++
			default:
				current := skillgraph.NodeFromModel(row)
				wanted := n.Clone()
				wanted.Prerequisites = nil
				if current.Equal(wanted) {
					continue
				}
				applyNode(row, n, now)
				if err := a.deps.Skills.Overwrite(dbc, row); err != nil {
					return err
				}
				counts.Updated++
			}
		}
		if _, err := a.deps.Skills.Create(dbc, created); err != nil {
			return err
		}

		// Edge pass: each entry's live prerequisite set is replaced exactly.
		// Edges to tombstoned skills are not listed, so they survive.
		stored, err := a.deps.Prereqs.ListLiveBySkillIDs(dbc, keep)
		if err != nil {
			return err
		}
		have := make(map[string]skillgraph.Set, len(keep))
		for _, e := range stored {
			if have[e.SkillID] == nil {
				have[e.SkillID] = skillgraph.Set{}
			}
			have[e.SkillID].Add(e.PrerequisiteSkillID)
		}
		var adds []*types.SkillPrerequisite
		for _, n := range target.Nodes() {
			want := skillgraph.NewSet(n.Prerequisites...)
			var drop []string
			for p := range have[n.ID] {
				if !want.Has(p) {
					drop = append(drop, p)
				}
			}
			sort.Strings(drop)
			removed, err := a.deps.Prereqs.DeletePairs(dbc, n.ID, drop)
			if err != nil {
				return err
			}
			counts.EdgesRemoved += removed
			for _, p := range n.Prerequisites {
				if !have[n.ID].Has(p) {
					adds = append(adds, &types.SkillPrerequisite{SkillID: n.ID, PrerequisiteSkillID: p, CreatedAt: now})
				}
			}
		}
		added, err := a.deps.Prereqs.CreateIgnoreDuplicates(dbc, adds)
		if err != nil {
			return err
		}
		counts.EdgesAdded = added

		version := head.Version
		if counts.Total() > 0 {
			if version, err = a.deps.Base.CASGuard.BumpGraphVersion(dbc, courseID, head.Version); err != nil {
				return err
			}
		}

		after, err := a.loadGraph(dbc, courseID)
		if err != nil {
			return err
		}
		for _, id := range keep {
			next, ok := after.Node(id)
			if !ok {
				continue
			}
			switch ops[id] {
			case skills.AuditCreate, skills.AuditRestore:
				changes = append(changes, domainagg.SkillChange{Operation: ops[id], SkillID: id, After: &next})
			default:
				prev, _ := before.Node(id)
				if !prev.EquivalentTo(next) {
					changes = append(changes, domainagg.SkillChange{Operation: skills.AuditUpdate, SkillID: id, Before: &prev, After: &next})
				}
			}
		}

		out = domainagg.SyncSkillGraphResult{
			CourseID: courseID,
			Version:  version,
			Skills:   after.Nodes(),
			Counts:   counts,
			Changes:  changes,
		}
		return nil
	})
	if err == nil {
		a.deps.Base.Hooks.ObserveSync(courseID, out.Counts)
	}
	return out, err
}

func (a *skillGraphAggregate) Connect(ctx context.Context, in domainagg.ConnectSkillsInput) (domainagg.EdgeMutationResult, error) {
	const op = "Learning.SkillGraph.Connect"
	out := domainagg.EdgeMutationResult{CourseID: in.CourseID, SkillID: in.SkillID, PrerequisiteID: in.PrerequisiteID}
	if err := requireEdgeInput(op, in); err != nil {
		return out, err
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if in.SkillID == in.PrerequisiteID {
			return rejectionError(op, skillgraph.RejectSelfReference)
		}
		head, err := a.deps.Heads.LockByCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		g, err := a.loadGraph(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if !g.Has(in.SkillID) {
			return skillNotFound(op, in.SkillID)
		}
		if !g.Has(in.PrerequisiteID) {
			return skillNotFound(op, in.PrerequisiteID)
		}
		if r := g.CheckProposal(in.SkillID, in.PrerequisiteID); r != skillgraph.Accepted {
			return rejectionError(op, r)
		}
		prev, _ := g.Node(in.SkillID)

		if _, err := a.deps.Prereqs.CreateIgnoreDuplicates(dbc, []*types.SkillPrerequisite{{
			SkillID:             in.SkillID,
			PrerequisiteSkillID: in.PrerequisiteID,
			CreatedAt:           time.Now().UTC(),
		}}); err != nil {
			return err
		}
		version, err := a.deps.Base.CASGuard.BumpGraphVersion(dbc, in.CourseID, head.Version)
		if err != nil {
			return err
		}

		next := prev.Clone()
		next.Prerequisites = append(next.Prerequisites, in.PrerequisiteID)
		out.Changed = true
		out.Version = version
		out.Change = &domainagg.SkillChange{Operation: skills.AuditConnect, SkillID: in.SkillID, Before: &prev, After: &next}
		return nil
	})
	return out, err
}

func (a *skillGraphAggregate) Disconnect(ctx context.Context, in domainagg.ConnectSkillsInput) (domainagg.EdgeMutationResult, error) {
	const op = "Learning.SkillGraph.Disconnect"
	out := domainagg.EdgeMutationResult{CourseID: in.CourseID, SkillID: in.SkillID, PrerequisiteID: in.PrerequisiteID}
	if err := requireEdgeInput(op, in); err != nil {
		return out, err
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		head, err := a.deps.Heads.LockByCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		g, err := a.loadGraph(dbc, in.CourseID)
		if err != nil {
			return err
		}
		prev, ok := g.Node(in.SkillID)
		if !ok {
			return skillNotFound(op, in.SkillID)
		}
		removed, err := a.deps.Prereqs.DeletePairs(dbc, in.SkillID, []string{in.PrerequisiteID})
		if err != nil {
			return err
		}
		out.Version = head.Version
		if removed == 0 {
			return nil
		}
		if out.Version, err = a.deps.Base.CASGuard.BumpGraphVersion(dbc, in.CourseID, head.Version); err != nil {
			return err
		}
		g.RemovePrerequisite(in.SkillID, in.PrerequisiteID)
		next, _ := g.Node(in.SkillID)
		out.Changed = true
		out.Change = &domainagg.SkillChange{Operation: skills.AuditDisconnect, SkillID: in.SkillID, Before: &prev, After: &next}
		return nil
	})
	return out, err
}

func (a *skillGraphAggregate) CreateSkill(ctx context.Context, in domainagg.CreateSkillInput) (domainagg.SkillMutationResult, error) {
	const op = "Learning.SkillGraph.CreateSkill"
	out := domainagg.SkillMutationResult{CourseID: in.CourseID}
	if strings.TrimSpace(in.CourseID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}
	input := normalizeInput(in.Skill)
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if err := validateNewSkill(op, input); err != nil {
		return out, err
	}
	node := nodeFromInput(input)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		head, err := a.deps.Heads.LockByCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		g, err := a.loadGraph(dbc, in.CourseID)
		if err != nil {
			return err
		}
		for _, p := range node.Prerequisites {
			if !g.Has(p) {
				return skillNotFound(op, p)
			}
		}
		existing, err := a.deps.Skills.GetByIDsUnscoped(dbc, []string{node.ID})
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		operation := skills.AuditCreate
		switch {
		case len(existing) == 0:
			if _, err := a.deps.Skills.Create(dbc, []*types.Skill{newSkillRow(in.CourseID, node, now)}); err != nil {
				return err
			}
		case existing[0].CourseID != in.CourseID:
			return ConflictError(fmt.Sprintf("skill %s belongs to another course", node.ID))
		case !existing[0].DeletedAt.Valid:
			return ConflictError(fmt.Sprintf("skill %s already exists", node.ID))
		default:
			row := existing[0]
			applyNode(row, node, now)
			if err := a.deps.Skills.Overwrite(dbc, row); err != nil {
				return err
			}
			operation = skills.AuditRestore
		}

		edges := make([]*types.SkillPrerequisite, 0, len(node.Prerequisites))
		for _, p := range node.Prerequisites {
			edges = append(edges, &types.SkillPrerequisite{SkillID: node.ID, PrerequisiteSkillID: p, CreatedAt: now})
		}
		if _, err := a.deps.Prereqs.CreateIgnoreDuplicates(dbc, edges); err != nil {
			return err
		}
		version, err := a.deps.Base.CASGuard.BumpGraphVersion(dbc, in.CourseID, head.Version)
		if err != nil {
			return err
		}
		created := node.Clone()
		out.Skill = created
		out.Version = version
		out.Change = &domainagg.SkillChange{Operation: operation, SkillID: node.ID, After: &created}
		return nil
	})
	return out, err
}

func (a *skillGraphAggregate) UpdateAttributes(ctx context.Context, in domainagg.UpdateSkillInput) (domainagg.SkillMutationResult, error) {
	const op = "Learning.SkillGraph.UpdateAttributes"
	out := domainagg.SkillMutationResult{CourseID: in.CourseID}
	if strings.TrimSpace(in.CourseID) == "" || strings.TrimSpace(in.SkillID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id or skill_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}
	if err := validatePatch(op, in.Patch); err != nil {
		return out, err
	}
	return a.updateSkill(ctx, op, in.CourseID, in.SkillID, patchUpdates(in.Patch))
}

func (a *skillGraphAggregate) UpdatePosition(ctx context.Context, in domainagg.UpdatePositionInput) (domainagg.SkillMutationResult, error) {
	const op = "Learning.SkillGraph.UpdatePosition"
	out := domainagg.SkillMutationResult{CourseID: in.CourseID}
	if strings.TrimSpace(in.CourseID) == "" || strings.TrimSpace(in.SkillID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id or skill_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}
	// Drag positions are unbounded canvas units, like the ones sync stores.
	return a.updateSkill(ctx, op, in.CourseID, in.SkillID, map[string]any{
		"position_x": in.PositionX,
		"position_y": in.PositionY,
	})
}

func (a *skillGraphAggregate) updateSkill(ctx context.Context, op, courseID, skillID string, updates map[string]any) (domainagg.SkillMutationResult, error) {
	out := domainagg.SkillMutationResult{CourseID: courseID}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		head, err := a.deps.Heads.LockByCourse(dbc, courseID)
		if err != nil {
			return err
		}
		row, err := a.deps.Skills.GetByID(dbc, courseID, skillID)
		if err != nil {
			return err
		}
		if row == nil {
			return skillNotFound(op, skillID)
		}
		edges, err := a.deps.Prereqs.ListLiveBySkillIDs(dbc, []string{skillID})
		if err != nil {
			return err
		}
		prev := withPrerequisites(skillgraph.NodeFromModel(row), edges)

		if _, err := a.deps.Skills.UpdateFields(dbc, courseID, skillID, updates); err != nil {
			return err
		}
		version, err := a.deps.Base.CASGuard.BumpGraphVersion(dbc, courseID, head.Version)
		if err != nil {
			return err
		}
		row, err = a.deps.Skills.GetByID(dbc, courseID, skillID)
		if err != nil {
			return err
		}
		if row == nil {
			return skillNotFound(op, skillID)
		}
		next := withPrerequisites(skillgraph.NodeFromModel(row), edges)
		out.Skill = next
		out.Version = version
		out.Change = &domainagg.SkillChange{Operation: skills.AuditUpdate, SkillID: skillID, Before: &prev, After: &next}
		return nil
	})
	return out, err
}

func (a *skillGraphAggregate) DeleteSkill(ctx context.Context, in domainagg.DeleteSkillInput) (domainagg.DeleteSkillResult, error) {
	const op = "Learning.SkillGraph.DeleteSkill"
	out := domainagg.DeleteSkillResult{CourseID: in.CourseID, SkillID: in.SkillID}
	if strings.TrimSpace(in.CourseID) == "" || strings.TrimSpace(in.SkillID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id or skill_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		head, err := a.deps.Heads.LockByCourse(dbc, in.CourseID)
		if err != nil {
			return err
		}
		g, err := a.loadGraph(dbc, in.CourseID)
		if err != nil {
			return err
		}
		prev, ok := g.Node(in.SkillID)
		if !ok {
			return skillNotFound(op, in.SkillID)
		}
		out.Dependents = len(g.Descendants(in.SkillID))

		if err := a.deps.Skills.SoftDeleteByIDs(dbc, in.CourseID, []string{in.SkillID}); err != nil {
			return err
		}
		if out.Version, err = a.deps.Base.CASGuard.BumpGraphVersion(dbc, in.CourseID, head.Version); err != nil {
			return err
		}
		out.Change = &domainagg.SkillChange{Operation: skills.AuditDelete, SkillID: in.SkillID, Before: &prev}
		return nil
	})
	return out, err
}

func (a *skillGraphAggregate) loadGraph(dbc dbctx.Context, courseID string) (*skillgraph.Graph, error) {
	rows, err := a.deps.Skills.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	edges, err := a.deps.Prereqs.ListLiveByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	return skillgraph.FromModels(rows, edges), nil
}

func requireEdgeInput(op string, in domainagg.ConnectSkillsInput) error {
	errs := fieldErrors{}
	if strings.TrimSpace(in.CourseID) == "" {
		errs.add("course_id", "is required")
	}
	if strings.TrimSpace(in.SkillID) == "" {
		errs.add("skill_id", "is required")
	}
	if strings.TrimSpace(in.PrerequisiteID) == "" {
		errs.add("prerequisite_id", "is required")
	}
	return domainagg.NewValidationError(op, errs)
}

func rejectionError(op string, r skillgraph.Rejection) error {
	return domainagg.NewInvariantError(op, r.Reason(), r.Message(), r.Err())
}

func skillNotFound(op, id string) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("skill not found: %s", id), nil)
}

// normalizeInput applies column defaults and collapses repeated prerequisite ids.
func normalizeInput(n domainagg.SkillNodeInput) domainagg.SkillNodeInput {
	n.ID = strings.TrimSpace(n.ID)
	if n.Category == "" {
		n.Category = string(skills.CategoryTheory)
	}
	if n.Difficulty == "" {
		n.Difficulty = string(skills.DifficultyBeginner)
	}
	if n.XPReward == nil {
		xp := skills.DefaultXPReward
		n.XPReward = &xp
	}
	if len(n.Prerequisites) > 0 {
		seen := skillgraph.Set{}
		uniq := make([]string, 0, len(n.Prerequisites))
		for _, p := range n.Prerequisites {
			p = strings.TrimSpace(p)
			if seen.Has(p) {
				continue
			}
			seen.Add(p)
			uniq = append(uniq, p)
		}
		n.Prerequisites = uniq
	}
	return n
}

func nodeFromInput(n domainagg.SkillNodeInput) skillgraph.Node {
	out := skillgraph.Node{
		ID:                  n.ID,
		Name:                n.Name,
		Description:         n.Description,
		Category:            skills.Category(n.Category),
		Difficulty:          skills.Difficulty(n.Difficulty),
		XPReward:            skills.DefaultXPReward,
		RemedialMaterialURL: n.RemedialMaterialURL,
		PositionX:           n.PositionX,
		PositionY:           n.PositionY,
		Prerequisites:       n.Prerequisites,
	}
	if n.XPReward != nil {
		out.XPReward = *n.XPReward
	}
	if len(n.Content) > 0 && string(n.Content) != "null" {
		out.Content = n.Content
	}
	return out.Clone()
}

func newSkillRow(courseID string, n skillgraph.Node, now time.Time) *types.Skill {
	row := &types.Skill{ID: n.ID, CourseID: courseID, CreatedAt: now}
	applyNode(row, n, now)
	return row
}

func applyNode(row *types.Skill, n skillgraph.Node, now time.Time) {
	row.Name = n.Name
	row.Description = n.Description
	row.Category = n.Category
	row.Difficulty = n.Difficulty
	row.XPReward = n.XPReward
	row.RemedialMaterialURL = n.RemedialMaterialURL
	row.PositionX = n.PositionX
	row.PositionY = n.PositionY
	row.Content = nil
	if len(n.Content) > 0 {
		row.Content = datatypes.JSON(n.Content)
	}
	row.UpdatedAt = now
}

func withPrerequisites(n skillgraph.Node, edges []*types.SkillPrerequisite) skillgraph.Node {
	for _, e := range edges {
		if e.SkillID == n.ID {
			n.Prerequisites = append(n.Prerequisites, e.PrerequisiteSkillID)
		}
	}
	return n
}

func patchUpdates(p domainagg.SkillPatch) map[string]any {
	updates := map[string]any{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description.Set {
		updates["description"] = p.Description.Value
	}
	if p.Category != nil {
		updates["category"] = *p.Category
	}
	if p.Content != nil {
		if string(p.Content) == "null" {
			updates["content"] = datatypes.JSON("null")
		} else {
			updates["content"] = datatypes.JSON(p.Content)
		}
	}
	if p.Difficulty != nil {
		updates["difficulty"] = *p.Difficulty
	}
	if p.XPReward != nil {
		updates["xp_reward"] = *p.XPReward
	}
	if p.RemedialMaterialURL.Set {
		updates["remedial_material_url"] = p.RemedialMaterialURL.Value
	}
	if p.PositionX != nil {
		updates["position_x"] = *p.PositionX
	}
	if p.PositionY != nil {
		updates["position_y"] = *p.PositionY
	}
	return updates
}
