package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/skillgraph-backend/internal/http/handlers"
	httpMW "github.com/yungbote/skillgraph-backend/internal/http/middleware"
	"github.com/yungbote/skillgraph-backend/internal/observability"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware    *httpMW.AuthMiddleware
	HealthHandler     *httpH.HealthHandler
	SkillGraphHandler *httpH.SkillGraphHandler
	RealtimeHandler   *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/courses/:course/stream", cfg.RealtimeHandler.CourseStream)
	}

	// Skill graph
	if h := cfg.SkillGraphHandler; h != nil {
		skills := api.Group("/courses/:course/skills")
		skills.GET("", h.LoadGraph)
		skills.POST("", h.CreateSkill)
		skills.POST("/sync", h.Sync)
		skills.GET("/audit", h.AuditTrail)
		skills.PUT("/:skill", h.UpdateAttributes)
		skills.DELETE("/:skill", h.DeleteSkill)
		skills.PATCH("/:skill/position", h.UpdatePosition)
		skills.POST("/:skill/prerequisites", h.Connect)
		skills.DELETE("/:skill/prerequisites/:prerequisite", h.Disconnect)
		skills.GET("/:skill/targets", h.ValidTargets)
		skills.GET("/:skill/impact", h.Impact)
		skills.POST("/:skill/readiness", h.Readiness)
	}

	return r
}
