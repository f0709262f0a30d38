package skillgraph

import (
	"regexp"
	"strconv"
	"strings"
)

const DefaultSkillName = "New Skill"

var defaultNamePattern = regexp.MustCompile(`New Skill\s*(\d+)?`)

// NextDefaultName picks the placeholder name for a freshly added skill.
// A bare "New Skill" counts as 1, so the first placeholder is "New Skill"
// and the next is "New Skill 2".
func NextDefaultName(existing []string) string {
	max := 0
	for _, name := range existing {
		if !strings.Contains(name, DefaultSkillName) {
			continue
		}
		m := defaultNamePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n := 1
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil {
				n = v
			}
		}
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return DefaultSkillName
	}
	return DefaultSkillName + " " + strconv.Itoa(max+1)
}

// DefaultDescription is the placeholder description paired with a generated name.
func DefaultDescription(name string) string {
	return "Description for " + name
}

// CopyName is the name given to a duplicated skill.
func CopyName(name string) string {
	return name + " (Copy)"
}
