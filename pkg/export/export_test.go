package export

import (
	"bytes"
	"database/sql"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/cladeview/cladeview/pkg/analysis"
	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/model"
)

func sampleObservations() []model.Observation {
	return []model.Observation{
		{Lineage: "B.1", Count: 5, Kind: model.KindSample},
		{Lineage: "B.1.1", Count: 2, Kind: model.KindSample},
		{Lineage: "AY.4", Count: 7, Kind: model.KindInternal},
		{Lineage: "XBB.1.5", Count: 10, Kind: model.KindSample},
	}
}

func sampleForest(t *testing.T) *hierarchy.Forest {
	t.Helper()
	return hierarchy.Build(sampleObservations())
}

func TestSaveTreeSnapshotSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.svg")

	err := SaveTreeSnapshot(TreeSnapshotOptions{
		Path:     path,
		Title:    "Test Lineages",
		Forest:   sampleForest(t),
		DataHash: "abc123",
	})
	if err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	svg := string(data)

	for _, want := range []string{"<svg", "Test Lineages", "abc123", "XBB.1.5", "B.1.1", "AY.4"} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}

	// Synthesized ancestors appear with dashed borders and an inferred label.
	if !strings.Contains(svg, "stroke-dasharray") {
		t.Error("expected dashed border for synthesized nodes")
	}
	if !strings.Contains(svg, "inferred") {
		t.Error("expected inferred count label for synthesized nodes")
	}
}

func TestSaveTreeSnapshotSVGWriter(t *testing.T) {
	layout := buildTreeLayout(TreeSnapshotOptions{Forest: sampleForest(t)})

	var buf bytes.Buffer
	if err := renderTreeSVGToWriter(&buf, layout); err != nil {
		t.Fatalf("renderTreeSVGToWriter: %v", err)
	}
	if !strings.Contains(buf.String(), "</svg>") {
		t.Error("SVG output not terminated")
	}
}

func TestSaveTreeSnapshotPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.png")

	err := SaveTreeSnapshot(TreeSnapshotOptions{
		Path:   path,
		Forest: sampleForest(t),
	})
	if err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() < 640 || bounds.Dy() < 480 {
		t.Errorf("png too small: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestSaveTreeSnapshotFormatInference(t *testing.T) {
	dir := t.TempDir()

	// Extensionless path defaults to SVG and gains the extension.
	path := filepath.Join(dir, "snapshot")
	err := SaveTreeSnapshot(TreeSnapshotOptions{
		Path:   path,
		Forest: sampleForest(t),
	})
	if err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".svg"); err != nil {
		t.Errorf("expected %s.svg to exist: %v", path, err)
	}

	err = SaveTreeSnapshot(TreeSnapshotOptions{
		Path:   filepath.Join(dir, "bad.gif"),
		Forest: sampleForest(t),
	})
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSaveTreeSnapshotEmptyForest(t *testing.T) {
	err := SaveTreeSnapshot(TreeSnapshotOptions{
		Path:   filepath.Join(t.TempDir(), "x.svg"),
		Forest: hierarchy.Build(nil),
	})
	if err == nil {
		t.Error("expected error for empty forest")
	}
}

func TestTreeLayoutMaxDepth(t *testing.T) {
	layout := buildTreeLayout(TreeSnapshotOptions{
		Forest:   sampleForest(t),
		MaxDepth: 1,
	})
	sawLevelOne := false
	for _, n := range layout.Nodes {
		if n.Depth > 1 {
			t.Errorf("node %s at level %d exceeds max depth 1", n.Name, n.Depth)
		}
		if n.Depth == 1 {
			sawLevelOne = true
		}
	}
	// Level 1 is inclusive at max depth 1.
	if !sawLevelOne {
		t.Error("expected level-1 nodes in the layout")
	}
}

func TestTreeLayoutFocusedForestStartsAtColumnZero(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		{Lineage: "AY.4.2", Count: 3, Kind: model.KindSample},
		{Lineage: "AY.4.2.1", Count: 2, Kind: model.KindSample},
	}, hierarchy.WithSubtreeRoot("AY.4.2"))

	layout := buildTreeLayout(TreeSnapshotOptions{Forest: f})
	for _, n := range layout.Nodes {
		switch n.Name {
		case "AY.4.2":
			if n.Depth != 0 {
				t.Errorf("focus root at level %d, want 0", n.Depth)
			}
		case "AY.4.2.1":
			if n.Depth != 1 {
				t.Errorf("focus child at level %d, want 1", n.Depth)
			}
		}
	}
}

func TestHashObservationsOrderIndependent(t *testing.T) {
	obs := sampleObservations()
	reversed := make([]model.Observation, len(obs))
	for i, o := range obs {
		reversed[len(obs)-1-i] = o
	}

	if HashObservations(obs) != HashObservations(reversed) {
		t.Error("hash should not depend on observation order")
	}
	if HashObservations(obs) == HashObservations(obs[:2]) {
		t.Error("different observation sets should hash differently")
	}
}

func TestSQLiteExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metrics.SetEnabled(true)

	observations := sampleObservations()
	forest := hierarchy.Build(observations)
	summary := analysis.Analyze(forest, analysis.DefaultTopK)

	exporter := NewSQLiteExporter(observations, forest, summary)
	if err := exporter.Export(dir); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dbPath := filepath.Join(dir, "observations.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open exported db: %v", err)
	}
	defer db.Close()

	var obsCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&obsCount); err != nil {
		t.Fatalf("count observations: %v", err)
	}
	if obsCount != len(observations) {
		t.Errorf("observations rows = %d, want %d", obsCount, len(observations))
	}

	var lineageCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM lineages").Scan(&lineageCount); err != nil {
		t.Fatalf("count lineages: %v", err)
	}
	if lineageCount != forest.Len() {
		t.Errorf("lineages rows = %d, want %d", lineageCount, forest.Len())
	}

	// Synthesized ancestors are persisted with zero own count.
	var synthOwn int
	err = db.QueryRow("SELECT own_count FROM lineages WHERE name = 'AY' AND synthesized = 1").Scan(&synthOwn)
	if err != nil {
		t.Fatalf("query synthesized AY: %v", err)
	}
	if synthOwn != 0 {
		t.Errorf("synthesized AY own_count = %d, want 0", synthOwn)
	}

	var color string
	if err := db.QueryRow("SELECT color FROM lineages WHERE name = 'XBB.1.5'").Scan(&color); err != nil {
		t.Fatalf("query color: %v", err)
	}
	if !strings.HasPrefix(color, "#") || len(color) != 7 {
		t.Errorf("color = %q, want #rrggbb", color)
	}

	var hash string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'data_hash'").Scan(&hash); err != nil {
		t.Fatalf("query meta: %v", err)
	}
	if hash != exporter.DataHash() {
		t.Errorf("meta data_hash = %q, want %q", hash, exporter.DataHash())
	}

	// Collected timing stats are persisted alongside the provenance keys.
	var timings string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'timings'").Scan(&timings); err != nil {
		t.Fatalf("query meta timings: %v", err)
	}
	var stats []metrics.TimingStats
	if err := json.Unmarshal([]byte(timings), &stats); err != nil {
		t.Fatalf("meta timings is not valid JSON: %v\n%s", err, timings)
	}
	found := false
	for _, s := range stats {
		if s.Name == "build_forest" && s.Count > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected build_forest timing in meta, got %s", timings)
	}
}

func TestSQLiteExportSummarySidecar(t *testing.T) {
	dir := t.TempDir()

	observations := sampleObservations()
	forest := hierarchy.Build(observations)
	summary := analysis.Analyze(forest, analysis.DefaultTopK)

	exporter := NewSQLiteExporter(observations, forest, summary)
	if err := exporter.Export(dir); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	body := string(data)
	for _, want := range []string{"data_hash", "roots", "XBB", "B"} {
		if !strings.Contains(body, want) {
			t.Errorf("sidecar missing %q", want)
		}
	}
}

func TestSQLiteExportNoSidecar(t *testing.T) {
	dir := t.TempDir()

	observations := sampleObservations()
	forest := hierarchy.Build(observations)
	exporter := NewSQLiteExporter(observations, forest, nil)
	exporter.Config.IncludeSummaryJSON = false

	if err := exporter.Export(dir); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "summary.json")); !os.IsNotExist(err) {
		t.Error("summary.json should not be written when disabled")
	}
}
