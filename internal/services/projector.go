package services

import (
	"context"

	"github.com/yungbote/skillgraph-backend/internal/data/graph"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

// GraphProjector mirrors committed course graphs into a read model.
type GraphProjector interface {
	ReplaceCourseGraph(ctx context.Context, courseID string, version int64, nodes []skillgraph.Node) error
}

type neo4jProjector struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

// NewNeo4jProjector returns nil when client is nil so callers can skip projection.
func NewNeo4jProjector(client *neo4jdb.Client, baseLog *logger.Logger) GraphProjector {
	if client == nil {
		return nil
	}
	return &neo4jProjector{client: client, log: baseLog.With("projector", "Neo4jSkillGraph")}
}

func (p *neo4jProjector) ReplaceCourseGraph(ctx context.Context, courseID string, version int64, nodes []skillgraph.Node) error {
	return graph.ReplaceCourseSkillGraph(ctx, p.client, p.log, courseID, version, nodes)
}
