package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/http/response"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/services"
)

type SkillGraphHandler struct {
	log     *logger.Logger
	service services.SkillGraphService
}

func NewSkillGraphHandler(log *logger.Logger, service services.SkillGraphService) *SkillGraphHandler {
	return &SkillGraphHandler{
		log:     log.With("handler", "SkillGraphHandler"),
		service: service,
	}
}

type syncRequest struct {
	BaseVersion *int64                     `json:"base_version"`
	Skills      []domainagg.SkillNodeInput `json:"skills"`
}

type positionRequest struct {
	PositionX *int `json:"position_x"`
	PositionY *int `json:"position_y"`
}

type connectRequest struct {
	PrerequisiteID string `json:"prerequisite_id"`
}

type readinessRequest struct {
	Mastered []string `json:"mastered"`
}

// GET /api/courses/:course/skills
func (h *SkillGraphHandler) LoadGraph(c *gin.Context) {
	snap, err := h.service.LoadGraph(c.Request.Context(), c.Param("course"))
	if err != nil {
		h.fail(c, "LoadGraph", err)
		return
	}
	response.RespondOK(c, snap)
}

// POST /api/courses/:course/skills/sync
func (h *SkillGraphHandler) Sync(c *gin.Context) {
	var req syncRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Skills == nil {
		// An explicit empty list clears the graph; a missing one is a client bug.
		respondFieldError(c, "skills", "The skills field is required.")
		return
	}
	res, err := h.service.Sync(c.Request.Context(), c.Param("course"), req.BaseVersion, req.Skills)
	if err != nil {
		h.fail(c, "Sync", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":   services.MsgGraphSynced,
		"course_id": res.CourseID,
		"version":   res.Version,
		"skills":    res.Skills,
		"counts":    res.Counts,
	})
}

// POST /api/courses/:course/skills
func (h *SkillGraphHandler) CreateSkill(c *gin.Context) {
	var req domainagg.SkillNodeInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.CreateSkill(c.Request.Context(), c.Param("course"), req)
	if err != nil {
		h.fail(c, "CreateSkill", err)
		return
	}
	response.RespondCreated(c, gin.H{
		"message": services.MsgSkillCreated,
		"version": res.Version,
		"skill":   res.Skill,
	})
}

// PUT /api/courses/:course/skills/:skill
func (h *SkillGraphHandler) UpdateAttributes(c *gin.Context) {
	var req domainagg.SkillPatch
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.UpdateAttributes(c.Request.Context(), c.Param("course"), c.Param("skill"), req)
	if err != nil {
		h.fail(c, "UpdateAttributes", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message": services.MsgSkillUpdated,
		"version": res.Version,
		"skill":   res.Skill,
	})
}

// PATCH /api/courses/:course/skills/:skill/position
func (h *SkillGraphHandler) UpdatePosition(c *gin.Context) {
	var req positionRequest
	if !bindJSON(c, &req) {
		return
	}
	fields := map[string][]string{}
	if req.PositionX == nil {
		fields["position_x"] = []string{"The position x field is required."}
	}
	if req.PositionY == nil {
		fields["position_y"] = []string{"The position y field is required."}
	}
	if len(fields) > 0 {
		response.RespondAggregateError(c, domainagg.NewValidationError("Learning.SkillGraph.UpdatePosition", fields))
		return
	}
	res, err := h.service.UpdatePosition(c.Request.Context(), c.Param("course"), c.Param("skill"), *req.PositionX, *req.PositionY)
	if err != nil {
		h.fail(c, "UpdatePosition", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":    services.MsgPositionUpdated,
		"version":    res.Version,
		"skill_id":   res.Skill.ID,
		"position_x": res.Skill.PositionX,
		"position_y": res.Skill.PositionY,
	})
}

// DELETE /api/courses/:course/skills/:skill
func (h *SkillGraphHandler) DeleteSkill(c *gin.Context) {
	res, err := h.service.DeleteSkill(c.Request.Context(), c.Param("course"), c.Param("skill"))
	if err != nil {
		h.fail(c, "DeleteSkill", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":    services.MsgSkillDeleted,
		"version":    res.Version,
		"skill_id":   res.SkillID,
		"dependents": res.Dependents,
	})
}

// POST /api/courses/:course/skills/:skill/prerequisites
func (h *SkillGraphHandler) Connect(c *gin.Context) {
	var req connectRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.PrerequisiteID == "" {
		respondFieldError(c, "prerequisite_id", "The prerequisite id field is required.")
		return
	}
	res, err := h.service.Connect(c.Request.Context(), c.Param("course"), c.Param("skill"), req.PrerequisiteID)
	if err != nil {
		h.fail(c, "Connect", err)
		return
	}
	response.RespondCreated(c, gin.H{
		"message":         services.MsgPrerequisiteAdded,
		"version":         res.Version,
		"skill_id":        res.SkillID,
		"prerequisite_id": res.PrerequisiteID,
	})
}

// DELETE /api/courses/:course/skills/:skill/prerequisites/:prerequisite
func (h *SkillGraphHandler) Disconnect(c *gin.Context) {
	res, err := h.service.Disconnect(c.Request.Context(), c.Param("course"), c.Param("skill"), c.Param("prerequisite"))
	if err != nil {
		h.fail(c, "Disconnect", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":         services.MsgPrerequisiteRemoved,
		"version":         res.Version,
		"changed":         res.Changed,
		"skill_id":        res.SkillID,
		"prerequisite_id": res.PrerequisiteID,
	})
}

// GET /api/courses/:course/skills/:skill/targets
func (h *SkillGraphHandler) ValidTargets(c *gin.Context) {
	targets, err := h.service.ValidTargets(c.Request.Context(), c.Param("course"), c.Param("skill"))
	if err != nil {
		h.fail(c, "ValidTargets", err)
		return
	}
	response.RespondOK(c, gin.H{"skill_id": c.Param("skill"), "targets": targets})
}

// GET /api/courses/:course/skills/:skill/impact
func (h *SkillGraphHandler) Impact(c *gin.Context) {
	res, err := h.service.Impact(c.Request.Context(), c.Param("course"), c.Param("skill"))
	if err != nil {
		h.fail(c, "Impact", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/courses/:course/skills/:skill/readiness
func (h *SkillGraphHandler) Readiness(c *gin.Context) {
	var req readinessRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Readiness(c.Request.Context(), c.Param("course"), c.Param("skill"), req.Mastered)
	if err != nil {
		h.fail(c, "Readiness", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/courses/:course/skills/audit?limit=
func (h *SkillGraphHandler) AuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.service.AuditTrail(c.Request.Context(), c.Param("course"), limit)
	if err != nil {
		h.fail(c, "AuditTrail", err)
		return
	}
	response.RespondOK(c, gin.H{"entries": rows})
}

func (h *SkillGraphHandler) fail(c *gin.Context, op string, err error) {
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeInternal, "":
		h.log.Error(op+" failed", "error", err, "course_id", c.Param("course"))
	case domainagg.CodeRetryable:
		h.log.Warn(op+" retryable failure", "error", err, "course_id", c.Param("course"))
	default:
		h.log.Debug(op+" rejected", "code", string(code), "error", err)
	}
	response.RespondAggregateError(c, err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}

func respondFieldError(c *gin.Context, field, msg string) {
	response.RespondAggregateError(c, domainagg.NewValidationError("Learning.SkillGraph.Request", map[string][]string{field: {msg}}))
}
