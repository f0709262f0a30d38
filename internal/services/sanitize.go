package services

import (
	"bytes"
	"encoding/json"
	"strings"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
)

// Sanitizer normalizes free text before it reaches validation.
type Sanitizer interface {
	Node(in domainagg.SkillNodeInput) domainagg.SkillNodeInput
	Patch(p domainagg.SkillPatch) domainagg.SkillPatch
}

type textSanitizer struct{}

func NewSanitizer() Sanitizer { return textSanitizer{} }

func (textSanitizer) Node(in domainagg.SkillNodeInput) domainagg.SkillNodeInput {
	out := in
	out.ID = strings.TrimSpace(in.ID)
	out.Name = strings.TrimSpace(in.Name)
	out.Description = trimOptional(in.Description)
	out.Category = strings.TrimSpace(in.Category)
	out.Difficulty = strings.TrimSpace(in.Difficulty)
	out.RemedialMaterialURL = trimOptional(in.RemedialMaterialURL)
	out.Content = sanitizeJSON(in.Content)
	if in.Prerequisites != nil {
		out.Prerequisites = make([]string, 0, len(in.Prerequisites))
		for _, p := range in.Prerequisites {
			out.Prerequisites = append(out.Prerequisites, strings.TrimSpace(p))
		}
	}
	return out
}

func (textSanitizer) Patch(p domainagg.SkillPatch) domainagg.SkillPatch {
	out := p
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		out.Name = &v
	}
	if p.Description.Set {
		out.Description.Value = trimOptional(p.Description.Value)
	}
	if p.RemedialMaterialURL.Set {
		out.RemedialMaterialURL.Value = trimOptional(p.RemedialMaterialURL.Value)
	}
	if p.Category != nil {
		v := strings.TrimSpace(*p.Category)
		out.Category = &v
	}
	if p.Difficulty != nil {
		v := strings.TrimSpace(*p.Difficulty)
		out.Difficulty = &v
	}
	out.Content = sanitizeJSON(p.Content)
	return out
}

// trimOptional maps blank strings to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// sanitizeJSON trims every string leaf. Invalid JSON is returned unchanged so
// validation can report it.
func sanitizeJSON(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		return raw
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	out, err := json.Marshal(trimLeaves(v))
	if err != nil {
		return raw
	}
	return out
}

func trimLeaves(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for k, item := range t {
			t[k] = trimLeaves(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = trimLeaves(item)
		}
		return t
	default:
		return v
	}
}
