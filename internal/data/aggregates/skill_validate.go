package aggregates

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
)

const (
	maxPatchNameLength   = 150
	maxDescriptionLength = 5000
	maxURLLength         = 500
	maxCanvasCoordinate  = 10000
	maxXPReward          = 10000
)

var skillIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("skill_id", func(fl validator.FieldLevel) bool {
			return skillIDPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// fieldErrors accumulates messages keyed by payload path.
type fieldErrors map[string][]string

func (f fieldErrors) add(key, msg string) {
	f[key] = append(f[key], msg)
}

func (f fieldErrors) collect(prefix string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			f.add(strings.TrimSuffix(prefix, "."), err.Error())
		}
		return
	}
	for _, fe := range verrs {
		f.add(prefix+fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not be longer than %s characters", fe.Param())
		}
		return fmt.Sprintf("must not be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "skill_id":
		return "may only contain letters, digits, '-' and '_'"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// validateSyncPayload checks shape and the structural rules that need the whole payload:
// unique ids, prerequisites present in the payload, no self-references.
func validateSyncPayload(op string, nodes []domainagg.SkillNodeInput) error {
	v := payloadValidator()
	errs := fieldErrors{}
	seen := make(map[string]int, len(nodes))
	for i, n := range nodes {
		prefix := fmt.Sprintf("skills.%d.", i)
		errs.collect(prefix, v.Struct(n))
		if len(n.Content) > 0 && !json.Valid(n.Content) {
			errs.add(prefix+"content", "must be valid JSON")
		}
		if first, dup := seen[n.ID]; dup && n.ID != "" {
			errs.add(prefix+"id", fmt.Sprintf("duplicates skills.%d.id", first))
		} else {
			seen[n.ID] = i
		}
	}
	for i, n := range nodes {
		for j, p := range n.Prerequisites {
			key := fmt.Sprintf("skills.%d.prerequisites.%d", i, j)
			switch {
			case p == n.ID:
				errs.add(key, "A skill cannot be its own prerequisite.")
			case !hasKey(seen, p):
				errs.add(key, "must reference a skill in the payload")
			}
		}
	}
	return domainagg.NewValidationError(op, errs)
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

// validateNewSkill checks one skill for the explicit create path.
func validateNewSkill(op string, n domainagg.SkillNodeInput) error {
	errs := fieldErrors{}
	errs.collect("", payloadValidator().Struct(n))
	if len(n.Content) > 0 && !json.Valid(n.Content) {
		errs.add("content", "must be valid JSON")
	}
	checkPosition(errs, "position_x", n.PositionX)
	checkPosition(errs, "position_y", n.PositionY)
	for j, p := range n.Prerequisites {
		if p == n.ID {
			errs.add(fmt.Sprintf("prerequisites.%d", j), "A skill cannot be its own prerequisite.")
		}
	}
	return domainagg.NewValidationError(op, errs)
}

func validatePatch(op string, p domainagg.SkillPatch) error {
	v := payloadValidator()
	errs := fieldErrors{}
	if p.Empty() {
		errs.add("body", "at least one field must be provided")
		return domainagg.NewValidationError(op, errs)
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			errs.add("name", "is required")
		} else if len(*p.Name) > maxPatchNameLength {
			errs.add("name", fmt.Sprintf("must not be longer than %d characters", maxPatchNameLength))
		}
	}
	if p.Description.Value != nil && len(*p.Description.Value) > maxDescriptionLength {
		errs.add("description", fmt.Sprintf("must not be longer than %d characters", maxDescriptionLength))
	}
	if p.Category != nil && !skills.Category(*p.Category).Valid() {
		errs.add("category", "must be one of: theory, practice, review")
	}
	if p.Difficulty != nil && !skills.Difficulty(*p.Difficulty).Valid() {
		errs.add("difficulty", "must be one of: beginner, intermediate, advanced")
	}
	if p.Content != nil && !json.Valid(p.Content) {
		errs.add("content", "must be valid JSON")
	}
	if p.XPReward != nil && (*p.XPReward < 0 || *p.XPReward > maxXPReward) {
		errs.add("xp_reward", fmt.Sprintf("must be between 0 and %d", maxXPReward))
	}
	if u := p.RemedialMaterialURL.Value; u != nil {
		if len(*u) > maxURLLength {
			errs.add("remedial_material_url", fmt.Sprintf("must not be longer than %d characters", maxURLLength))
		} else if err := v.Var(*u, "url"); err != nil {
			errs.add("remedial_material_url", "must be a valid URL")
		}
	}
	if p.PositionX != nil {
		checkPosition(errs, "position_x", *p.PositionX)
	}
	if p.PositionY != nil {
		checkPosition(errs, "position_y", *p.PositionY)
	}
	return domainagg.NewValidationError(op, errs)
}

// checkPosition bounds positions set through the attribute and create
// endpoints. Sync and drag positions are not bounded.
func checkPosition(errs fieldErrors, key string, v int) {
	if v < 0 || v > maxCanvasCoordinate {
		errs.add(key, fmt.Sprintf("must be between 0 and %d", maxCanvasCoordinate))
	}
}
