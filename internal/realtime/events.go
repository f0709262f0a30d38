package realtime

import "strings"

type SSEEvent string

const (
	SSEEventSkillGraphSynced     SSEEvent = "SkillGraphSynced"
	SSEEventSkillCreated         SSEEvent = "SkillCreated"
	SSEEventSkillUpdated         SSEEvent = "SkillUpdated"
	SSEEventSkillPositionUpdated SSEEvent = "SkillPositionUpdated"
	SSEEventSkillDeleted         SSEEvent = "SkillDeleted"
	SSEEventPrerequisiteAdded    SSEEvent = "PrerequisiteAdded"
	SSEEventPrerequisiteRemoved  SSEEvent = "PrerequisiteRemoved"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// CourseChannel is the channel graph events of one course are broadcast on.
func CourseChannel(courseID string) string {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return ""
	}
	return "course:" + courseID
}
