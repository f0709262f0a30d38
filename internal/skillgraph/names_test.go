package skillgraph

import "testing"

func TestNextDefaultName(t *testing.T) {
	cases := []struct {
		existing []string
		want     string
	}{
		{nil, "New Skill"},
		{[]string{"Loops"}, "New Skill"},
		{[]string{"New Skill"}, "New Skill 2"},
		{[]string{"New Skill", "New Skill 2"}, "New Skill 3"},
		{[]string{"New Skill 7", "Loops"}, "New Skill 8"},
		{[]string{"Brand New Skill"}, "New Skill 2"},
	}
	for _, tc := range cases {
		if got := NextDefaultName(tc.existing); got != tc.want {
			t.Fatalf("NextDefaultName(%v): want=%q got=%q", tc.existing, tc.want, got)
		}
	}
}

func TestCopyName(t *testing.T) {
	if got := CopyName("Loops"); got != "Loops (Copy)" {
		t.Fatalf("CopyName: want=%q got=%q", "Loops (Copy)", got)
	}
}
