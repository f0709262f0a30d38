package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/skillgraph-backend/internal/realtime/bus"
)

type Clients struct {
	Bus bus.Bus
	// Redis is set only when the bus runs over Redis.
	Redis *bus.RedisBus
	Neo4j *neo4jdb.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var out Clients
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rb, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.Bus = rb
		out.Redis = rb
	} else {
		log.Info("REDIS_ADDR not set; realtime events stay in-process")
		out.Bus = bus.NewLocalBus()
	}

	// Neo4j
	n4, err := neo4jdb.New(log, cfg.Neo4j)
	if err != nil {
		_ = out.Bus.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	out.Neo4j = n4

	return out, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
