package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/skillgraph-backend/internal/data/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/observability"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
	"github.com/yungbote/skillgraph-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Authorizer services.GraphAuthorizer
	SkillGraph services.SkillGraphService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.SSEHub, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	authorizer := services.NewCourseAuthorizer()

	agg := aggregates.NewSkillGraphAggregate(aggregates.SkillGraphAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:         db,
			Log:        log,
			Runner:     aggregates.NewGormTxRunnerWithLockTimeout(db, cfg.TxLockTimeout),
			Hooks:      aggregates.NewObservabilityHooks(metrics),
			TxAttempts: cfg.TxAttempts,
		},
		Skills:  repos.Skill,
		Prereqs: repos.SkillPrerequisite,
		Heads:   repos.SkillGraphHead,
	})
	log.Info("Aggregate wired", "contract", agg.Contract().Name, "lock_scope", agg.Contract().LockScope, "tx_attempts", cfg.TxAttempts)

	audit := services.NewLogAuditSink(log)
	if cfg.AuditTable {
		audit = services.NewMultiAuditSink(audit, services.NewGormAuditSink(repos.SkillAuditLog))
	}

	skillGraph := services.NewSkillGraphService(log, services.SkillGraphServiceDeps{
		Aggregate:  agg,
		Skills:     repos.Skill,
		Prereqs:    repos.SkillPrerequisite,
		Heads:      repos.SkillGraphHead,
		AuditLogs:  repos.SkillAuditLog,
		Authorizer: authorizer,
		Sanitizer:  services.NewSanitizer(),
		Audit:      audit,
		Notifier:   services.NewGraphNotifier(&services.BusEmitter{Bus: clients.Bus, Local: hub, Log: log}),
		Projector:  services.NewNeo4jProjector(clients.Neo4j, log),
	})

	return Services{
		Auth:       services.NewAuthService(log, cfg.JWTSecretKey),
		Authorizer: authorizer,
		SkillGraph: skillGraph,
	}
}
