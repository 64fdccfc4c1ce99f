package lineage

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestParseSingleLetterRoot(t *testing.T) {
	d := Parse("B.1.1.7")
	wantSegs := []string{"B", "1", "1", "7"}
	if len(d.Segments) != len(wantSegs) {
		t.Fatalf("segments = %v, want %v", d.Segments, wantSegs)
	}
	for i, s := range wantSegs {
		if d.Segments[i] != s {
			t.Errorf("segment %d = %q, want %q", i, d.Segments[i], s)
		}
	}
	if d.Parent != "B.1.1" {
		t.Errorf("parent = %q, want %q", d.Parent, "B.1.1")
	}
	if d.Depth != 3 {
		t.Errorf("depth = %d, want 3", d.Depth)
	}
}

func TestParseMultiLetterRoot(t *testing.T) {
	d := Parse("AY.4.2")
	if len(d.Segments) != 3 || d.Segments[0] != "AY" || d.Segments[1] != "4" || d.Segments[2] != "2" {
		t.Errorf("segments = %v, want [AY 4 2]", d.Segments)
	}
	if d.Parent != "AY.4" {
		t.Errorf("parent = %q, want AY.4", d.Parent)
	}
	if d.Depth != 2 {
		t.Errorf("depth = %d, want 2", d.Depth)
	}
}

func TestParseRecombinant(t *testing.T) {
	// Scenario from the recombinant grammar: XBB.1.5
	d := Parse("XBB.1.5")
	if len(d.Segments) != 3 || d.Segments[0] != "XBB" || d.Segments[1] != "1" || d.Segments[2] != "5" {
		t.Errorf("segments = %v, want [XBB 1 5]", d.Segments)
	}
	if d.Parent != "XBB.1" {
		t.Errorf("parent = %q, want XBB.1", d.Parent)
	}
	if d.Depth != 2 {
		t.Errorf("depth = %d, want 2", d.Depth)
	}
}

func TestParseBareRoots(t *testing.T) {
	for _, name := range []string{"A", "B", "AY", "BA", "XBB", "X"} {
		d := Parse(name)
		if len(d.Segments) != 1 || d.Segments[0] != name {
			t.Errorf("Parse(%q).Segments = %v, want [%s]", name, d.Segments, name)
		}
		if d.Parent != "" {
			t.Errorf("Parse(%q).Parent = %q, want empty", name, d.Parent)
		}
		if d.Depth != 0 {
			t.Errorf("Parse(%q).Depth = %d, want 0", name, d.Depth)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	d := Parse("")
	if len(d.Segments) != 0 || d.Parent != "" || d.Depth != 0 {
		t.Errorf("Parse(\"\") = %+v, want degenerate empty decomposition", d)
	}
}

func TestParseMalformedNumericSegment(t *testing.T) {
	// Non-numeric segments are opaque strings, not errors.
	d := Parse("B.x")
	if len(d.Segments) != 2 || d.Segments[1] != "x" {
		t.Errorf("segments = %v, want [B x]", d.Segments)
	}
	if d.Parent != "B" {
		t.Errorf("parent = %q, want B", d.Parent)
	}
}

func TestRootOf(t *testing.T) {
	cases := map[string]string{
		"B.1.1.7": "B",
		"AY.4.2":  "AY",
		"XBB.1.5": "XBB",
		"XBB":     "XBB",
		"A":       "A",
		"":        "",
	}
	for name, want := range cases {
		if got := RootOf(name); got != want {
			t.Errorf("RootOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestIsLineageLike(t *testing.T) {
	valid := []string{"A", "B.1", "B.1.1.7", "b.2"}
	for _, name := range valid {
		if !IsLineageLike(name) {
			t.Errorf("IsLineageLike(%q) = false, want true", name)
		}
	}
	// The strict predicate deliberately rejects multi-letter and
	// recombinant names; IsHierarchical accepts them.
	invalid := []string{"AY.4", "XBB.1.5", "B.x", "B.", "", "1.2"}
	for _, name := range invalid {
		if IsLineageLike(name) {
			t.Errorf("IsLineageLike(%q) = true, want false", name)
		}
	}
}

func TestIsHierarchical(t *testing.T) {
	valid := []string{"A", "B.1.1.7", "AY.4", "BA.2.75", "XBB.1.5", "XBB"}
	for _, name := range valid {
		if !IsHierarchical(name) {
			t.Errorf("IsHierarchical(%q) = false, want true", name)
		}
	}
	invalid := []string{"", "B.x", "B..1", "1.2", "B.1.x7"}
	for _, name := range invalid {
		if IsHierarchical(name) {
			t.Errorf("IsHierarchical(%q) = true, want false", name)
		}
	}
}

// genLineageName draws a plausible lineage name across all three grammars.
func genLineageName(t *rapid.T) string {
	root := rapid.SampledFrom([]string{
		"A", "B", "C", "P", "Q", "AY", "BA", "BQ", "CH", "EG", "JN", "KP", "XBB", "XBC", "XD",
	}).Draw(t, "root")
	depth := rapid.IntRange(0, 6).Draw(t, "depth")
	parts := []string{root}
	for i := 0; i < depth; i++ {
		parts = append(parts, rapid.SampledFrom([]string{"1", "2", "3", "4", "5", "7", "10", "75", "86"}).Draw(t, "seg"))
	}
	return strings.Join(parts, ".")
}

func TestParseDepthMatchesSegments(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := genLineageName(t)
		d := Parse(name)
		if d.Depth != len(d.Segments)-1 {
			t.Fatalf("Parse(%q): depth %d != len(segments)-1 (%d)", name, d.Depth, len(d.Segments)-1)
		}
	})
}

func TestParseParentRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := genLineageName(t)
		d := Parse(name)
		if len(d.Segments) < 2 {
			return
		}
		rebuilt := d.Parent + "." + d.Segments[len(d.Segments)-1]
		if rebuilt != name {
			t.Fatalf("parent round-trip: %q + last segment = %q, want %q", d.Parent, rebuilt, name)
		}
	})
}

func TestRootOfAgreesWithParse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := genLineageName(t)
		d := Parse(name)
		if got := RootOf(name); got != d.Segments[0] {
			t.Fatalf("RootOf(%q) = %q, Parse segments[0] = %q", name, got, d.Segments[0])
		}
	})
}
