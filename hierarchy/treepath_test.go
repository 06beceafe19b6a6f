package hierarchy

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genTreePath builds a random valid tree path of 1..6 ids.
func genTreePath() gopter.Gen {
	return gen.SliceOfN(6, gen.Int64Range(1, 1_000_000)).Map(func(ids []int64) string {
		path := ""
		for _, id := range ids {
			path = ChildPath(path, id)
		}
		return path
	})
}

func TestChildPathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("child extends parent by exactly one level", prop.ForAll(
		func(parent string, id int64) bool {
			child := ChildPath(parent, id)
			return PathLevel(child) == PathLevel(parent)+1
		},
		genTreePath(), gen.Int64Range(1, 1_000_000),
	))

	properties.Property("child path lies in parent's subtree", prop.ForAll(
		func(parent string, id int64) bool {
			return IsDescendantPath(parent, ChildPath(parent, id))
		},
		genTreePath(), gen.Int64Range(1, 1_000_000),
	))

	properties.Property("generated paths are always valid", prop.ForAll(
		func(parent string, id int64) bool {
			return ValidPath(ChildPath(parent, id))
		},
		genTreePath(), gen.Int64Range(1, 1_000_000),
	))

	properties.Property("descendant containment is transitive", prop.ForAll(
		func(base string, a, b int64) bool {
			mid := ChildPath(base, a)
			leaf := ChildPath(mid, b)
			return IsDescendantPath(base, mid) &&
				IsDescendantPath(mid, leaf) &&
				IsDescendantPath(base, leaf)
		},
		genTreePath(), gen.Int64Range(1, 1_000_000), gen.Int64Range(1, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestIsDescendantPath(t *testing.T) {
	cases := []struct {
		name     string
		ancestor string
		path     string
		want     bool
	}{
		{"self is contained", "1/4", "1/4", true},
		{"direct child", "1/4", "1/4/17", true},
		{"deep descendant", "1", "1/4/17/99", true},
		{"sibling excluded", "1/4", "1/5", false},
		{"id prefix is not a path prefix", "1/4", "1/41", false},
		{"ancestor not contained in child", "1/4/17", "1/4", false},
		{"empty ancestor", "", "1/4", false},
		{"empty path", "1/4", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDescendantPath(tc.ancestor, tc.path); got != tc.want {
				t.Errorf("IsDescendantPath(%q, %q) = %v, want %v", tc.ancestor, tc.path, got, tc.want)
			}
		})
	}
}

func TestPathLevel(t *testing.T) {
	if got := PathLevel("1"); got != 0 {
		t.Errorf("root level = %d, want 0", got)
	}
	if got := PathLevel("1/4/17"); got != 2 {
		t.Errorf("level = %d, want 2", got)
	}
	if got := PathLevel(""); got != 0 {
		t.Errorf("empty level = %d, want 0", got)
	}
}

func TestValidPath(t *testing.T) {
	valid := []string{"1", "1/2", "42/7/100"}
	for _, p := range valid {
		if !ValidPath(p) {
			t.Errorf("ValidPath(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "/", "1/", "/1", "1//2", "1/x", "a/b", "1/%"}
	for _, p := range invalid {
		if ValidPath(p) {
			t.Errorf("ValidPath(%q) = true, want false", p)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	got := EscapeLike(`1/4%_\`)
	if !strings.Contains(got, `\%`) || !strings.Contains(got, `\_`) || !strings.Contains(got, `\\`) {
		t.Errorf("EscapeLike left wildcards unescaped: %q", got)
	}
	if got := EscapeLike("1/4/17"); got != "1/4/17" {
		t.Errorf("EscapeLike changed a clean path: %q", got)
	}
}
