package skillgraph

import (
	"encoding/json"

	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
)

// FromModels builds the graph of live skills. Edges whose endpoints are not both
// in rows are dropped, which hides edges pointing at tombstoned skills.
func FromModels(rows []*skills.Skill, edges []*skills.SkillPrerequisite) *Graph {
	prereqs := map[string][]string{}
	live := make(Set, len(rows))
	for _, r := range rows {
		if r != nil {
			live.Add(r.ID)
		}
	}
	for _, e := range edges {
		if e == nil || !live.Has(e.SkillID) || !live.Has(e.PrerequisiteSkillID) {
			continue
		}
		prereqs[e.SkillID] = append(prereqs[e.SkillID], e.PrerequisiteSkillID)
	}
	g := New()
	for _, r := range rows {
		if r == nil {
			continue
		}
		n := NodeFromModel(r)
		n.Prerequisites = prereqs[r.ID]
		g.Upsert(n)
	}
	return g
}

// NodeFromModel copies a skill's attributes; prerequisites are left empty.
func NodeFromModel(r *skills.Skill) Node {
	n := Node{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Category:            r.Category,
		Difficulty:          r.Difficulty,
		XPReward:            r.XPReward,
		RemedialMaterialURL: r.RemedialMaterialURL,
		PositionX:           r.PositionX,
		PositionY:           r.PositionY,
	}
	if len(r.Content) > 0 && string(r.Content) != "null" {
		n.Content = json.RawMessage(r.Content)
	}
	return n.Clone()
}
