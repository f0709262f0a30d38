package app

import (
	"gorm.io/gorm"

	httpapi "github.com/yungbote/skillgraph-backend/internal/http"
	httpH "github.com/yungbote/skillgraph-backend/internal/http/handlers"
	httpMW "github.com/yungbote/skillgraph-backend/internal/http/middleware"
	"github.com/yungbote/skillgraph-backend/internal/observability"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	SkillGraph *httpH.SkillGraphHandler
	Realtime   *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		SkillGraph: httpH.NewSkillGraphHandler(log, services.SkillGraph),
		Realtime:   httpH.NewRealtimeHandler(log, hub, services.Authorizer),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *httpapi.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpapi.NewServer(httpapi.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		SkillGraphHandler: handlers.SkillGraph,
		RealtimeHandler:   handlers.Realtime,
	})
}
