package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cladeview/cladeview/pkg/model"
)

func TestParseObservationsBasic(t *testing.T) {
	input := `{"lineage":"B.1.1.7","count":5,"kind":"sample"}
{"lineage":"AY.4","count":3,"kind":"internal"}
{"lineage":"XBB.1.5","count":2}
`
	observations, err := ParseObservations(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseObservations: %v", err)
	}
	if len(observations) != 3 {
		t.Fatalf("got %d observations, want 3", len(observations))
	}
	if observations[0].Lineage != "B.1.1.7" || observations[0].Count != 5 {
		t.Errorf("first observation = %+v", observations[0])
	}
	if observations[1].Kind != model.KindInternal {
		t.Errorf("second observation kind = %q, want internal", observations[1].Kind)
	}
	// Untagged kind defaults to sample.
	if observations[2].Kind != model.KindSample {
		t.Errorf("untagged kind = %q, want sample", observations[2].Kind)
	}
}

func TestParseObservationsSkipsMalformed(t *testing.T) {
	input := `{"lineage":"B","count":1}
not json at all
{"lineage":"BA.2","count":-4}
{"lineage":"BA.5","count":2}
`
	var warnings []string
	observations, err := ParseObservationsWithOptions(strings.NewReader(input), ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("ParseObservations: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("got %d observations, want 2 (malformed and negative skipped)", len(observations))
	}
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
}

func TestParseObservationsStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBF" + `{"lineage":"B","count":1}` + "\n"
	observations, err := ParseObservations(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseObservations: %v", err)
	}
	if len(observations) != 1 || observations[0].Lineage != "B" {
		t.Errorf("BOM input parsed as %v", observations)
	}
}

func TestParseObservationsEmptyLines(t *testing.T) {
	input := "\n\n" + `{"lineage":"B","count":1}` + "\n\n"
	observations, err := ParseObservations(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseObservations: %v", err)
	}
	if len(observations) != 1 {
		t.Errorf("got %d observations, want 1", len(observations))
	}
}

func TestParseObservationsFilter(t *testing.T) {
	input := `{"lineage":"B.1","count":1}
{"lineage":"AY.4","count":2}
`
	observations, err := ParseObservationsWithOptions(strings.NewReader(input), ParseOptions{
		Filter: func(o *model.Observation) bool { return o.Lineage != "AY.4" },
	})
	if err != nil {
		t.Fatalf("ParseObservations: %v", err)
	}
	if len(observations) != 1 || observations[0].Lineage != "B.1" {
		t.Errorf("filtered result = %v", observations)
	}
}

func TestFindJSONLPathPrefersCanonical(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lineages.jsonl"), `{"lineage":"B","count":1}`+"\n")
	writeFile(t, filepath.Join(dir, "observations.jsonl"), `{"lineage":"B","count":1}`+"\n")
	writeFile(t, filepath.Join(dir, "observations.jsonl.backup"), "junk\n")

	path, err := FindJSONLPath(dir)
	if err != nil {
		t.Fatalf("FindJSONLPath: %v", err)
	}
	if filepath.Base(path) != "observations.jsonl" {
		t.Errorf("picked %s, want observations.jsonl", path)
	}
}

func TestGetCladesDirEnvOverride(t *testing.T) {
	t.Setenv(CladesDirEnvVar, "/tmp/custom-clades")
	dir, err := GetCladesDir("/ignored")
	if err != nil {
		t.Fatalf("GetCladesDir: %v", err)
	}
	if dir != "/tmp/custom-clades" {
		t.Errorf("dir = %s, want env override", dir)
	}
}

func TestMultiLoaderMergesAndTags(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	writeFile(t, a, `{"lineage":"B.1","count":2}`+"\n")
	writeFile(t, b, `{"lineage":"AY.4","count":3}`+"\n")

	ml := NewMultiLoader(ParseOptions{})
	merged, results, err := ml.LoadAll(context.Background(), []Dataset{
		{Name: "usa", Path: a},
		{Name: "uk", Path: b},
	})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged %d observations, want 2", len(merged))
	}
	if merged[0].Source != "usa" || merged[1].Source != "uk" {
		t.Errorf("sources = %q, %q", merged[0].Source, merged[1].Source)
	}
	for _, r := range results {
		if r.Error != nil {
			t.Errorf("dataset %s failed: %v", r.Name, r.Error)
		}
	}
}

func TestMultiLoaderPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jsonl")
	writeFile(t, good, `{"lineage":"B","count":1}`+"\n")

	ml := NewMultiLoader(ParseOptions{})
	merged, results, err := ml.LoadAll(context.Background(), []Dataset{
		{Name: "good", Path: good},
		{Name: "missing", Path: filepath.Join(dir, "nope.jsonl")},
	})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(merged) != 1 {
		t.Errorf("merged %d observations, want 1 from the good dataset", len(merged))
	}
	if results[1].Error == nil {
		t.Error("missing dataset should record an error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
