package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

// ReplaceCourseSkillGraph mirrors the committed graph of one course as
// (:Skill)-[:REQUIRES]->(:Skill). Skills missing from nodes are detached and
// removed, so the projection converges to the canonical state on every call.
func ReplaceCourseSkillGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, courseID string, version int64, nodes []skillgraph.Node) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return fmt.Errorf("neo4j skill graph sync: missing courseID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params := skillGraphParams(courseID, version, nodes, time.Now().UTC())

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT skill_id_unique IF NOT EXISTS FOR (s:Skill) REQUIRE s.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []string{
			`
MATCH (s:Skill {course_id: $course_id})
WHERE NOT s.id IN $ids
DETACH DELETE s
`,
			`
UNWIND $nodes AS n
MERGE (s:Skill {id: n.id})
SET s += n
`,
			`
MATCH (:Skill {course_id: $course_id})-[r:REQUIRES]->(:Skill)
DELETE r
`,
			`
UNWIND $edges AS e
MATCH (a:Skill {id: e.skill_id})
MATCH (b:Skill {id: e.prerequisite_id})
MERGE (a)-[r:REQUIRES]->(b)
SET r.course_id = $course_id
`,
		}
		for _, cypher := range steps {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j skill graph sync: %w", err)
	}
	return nil
}

func skillGraphParams(courseID string, version int64, nodes []skillgraph.Node, now time.Time) map[string]any {
	syncedAt := now.Format(time.RFC3339Nano)
	ids := make([]string, 0, len(nodes))
	rows := make([]map[string]any, 0, len(nodes))
	edges := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		ids = append(ids, n.ID)
		rows = append(rows, map[string]any{
			"id":            n.ID,
			"course_id":     courseID,
			"name":          n.Name,
			"category":      string(n.Category),
			"difficulty":    string(n.Difficulty),
			"xp_reward":     int64(n.XPReward),
			"graph_version": version,
			"synced_at":     syncedAt,
		})
		for _, p := range n.Prerequisites {
			edges = append(edges, map[string]any{"skill_id": n.ID, "prerequisite_id": p})
		}
	}
	return map[string]any{
		"course_id": courseID,
		"ids":       ids,
		"nodes":     rows,
		"edges":     edges,
	}
}
