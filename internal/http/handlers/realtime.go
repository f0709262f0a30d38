package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillgraph-backend/internal/http/response"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
	"github.com/yungbote/skillgraph-backend/internal/services"
)

type RealtimeHandler struct {
	log        *logger.Logger
	hub        *realtime.SSEHub
	authorizer services.GraphAuthorizer
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, authorizer services.GraphAuthorizer) *RealtimeHandler {
	if authorizer == nil {
		authorizer = services.NewCourseAuthorizer()
	}
	return &RealtimeHandler{
		log:        log.With("handler", "RealtimeHandler"),
		hub:        hub,
		authorizer: authorizer,
	}
}

// GET /api/courses/:course/stream
func (h *RealtimeHandler) CourseStream(c *gin.Context) {
	courseID := c.Param("course")
	actor, err := h.authorizer.AuthorizeGraphRead(c.Request.Context(), courseID)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	client := h.hub.NewSSEClient(actor.UserID)
	h.hub.AddChannel(client, realtime.CourseChannel(courseID))
	defer h.hub.CloseClient(client)

	h.log.Debug("SSE stream open", "actor_id", actor.UserID, "course_id", courseID, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.log.Debug("SSE stream closed", "client_id", client.ID, "open_for", time.Since(client.ConnectedAt), "dropped", client.Dropped())
}
