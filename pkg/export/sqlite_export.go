// Package export renders built lineage forests to static artifacts: SVG/PNG
// tree snapshots, SQLite databases for downstream tooling, and JSON summary
// sidecars.
package export

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/cladeview/cladeview/pkg/analysis"
	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/model"
	"github.com/cladeview/cladeview/pkg/version"

	_ "modernc.org/sqlite"
)

// SQLiteExportConfig controls database export behaviour.
type SQLiteExportConfig struct {
	// PageSize is the SQLite page size applied before VACUUM
	PageSize int
	// IncludeSummaryJSON writes a summary.json sidecar next to the database
	IncludeSummaryJSON bool
}

// DefaultSQLiteExportConfig returns sensible defaults.
func DefaultSQLiteExportConfig() SQLiteExportConfig {
	return SQLiteExportConfig{
		PageSize:           4096,
		IncludeSummaryJSON: true,
	}
}

// SQLiteExporter exports observations and a built forest to a SQLite database.
// The observations table round-trips through the datasource reader; the
// lineages table carries the aggregated hierarchy with assigned colors.
type SQLiteExporter struct {
	Observations []model.Observation
	Forest       *hierarchy.Forest
	Summary      *analysis.Summary
	Config       SQLiteExportConfig
	dataHash     string
}

// NewSQLiteExporter creates an exporter with the given data. Summary may be
// nil; it is only used for the JSON sidecar.
func NewSQLiteExporter(observations []model.Observation, forest *hierarchy.Forest, summary *analysis.Summary) *SQLiteExporter {
	return &SQLiteExporter{
		Observations: observations,
		Forest:       forest,
		Summary:      summary,
		Config:       DefaultSQLiteExportConfig(),
	}
}

// DataHash returns the provenance hash of the input observations, computing
// it on first use.
func (e *SQLiteExporter) DataHash() string {
	if e.dataHash == "" {
		e.dataHash = HashObservations(e.Observations)
	}
	return e.dataHash
}

// HashObservations computes a stable sha256 hash over the observation set,
// independent of input order.
func HashObservations(observations []model.Observation) string {
	lines := make([]string, 0, len(observations))
	for _, obs := range observations {
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%s\x00%s", obs.Lineage, obs.Count, obs.Kind, obs.Source))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Export writes the SQLite database (and optional JSON sidecar) into outputDir.
func (e *SQLiteExporter) Export(outputDir string) error {
	defer metrics.Timer(metrics.SQLiteExport)()

	if e.Forest == nil {
		return fmt.Errorf("forest is required for export")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	dbPath := filepath.Join(outputDir, "observations.db")

	// Remove existing database if present
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := createSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if err := e.insertObservations(db); err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}

	if err := e.insertLineages(db); err != nil {
		return fmt.Errorf("insert lineages: %w", err)
	}

	if err := e.insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := optimizeDatabase(db, e.Config.PageSize); err != nil {
		return fmt.Errorf("optimize database: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true

	if e.Config.IncludeSummaryJSON {
		if err := e.writeSummaryJSON(outputDir); err != nil {
			return fmt.Errorf("write summary json: %w", err)
		}
	}

	return nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE observations (
			lineage TEXT NOT NULL,
			count   INTEGER NOT NULL,
			kind    TEXT NOT NULL DEFAULT 'sample',
			source  TEXT
		);
		CREATE INDEX idx_observations_lineage ON observations(lineage);

		CREATE TABLE lineages (
			name           TEXT PRIMARY KEY,
			parent         TEXT,
			depth          INTEGER NOT NULL,
			own_count      INTEGER NOT NULL,
			total_count    INTEGER NOT NULL,
			sample_count   INTEGER NOT NULL,
			internal_count INTEGER NOT NULL,
			total_taxa     INTEGER NOT NULL,
			synthesized    INTEGER NOT NULL,
			color          TEXT NOT NULL
		);
		CREATE INDEX idx_lineages_parent ON lineages(parent);

		CREATE TABLE meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

func (e *SQLiteExporter) insertObservations(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO observations (lineage, count, kind, source)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, obs := range e.Observations {
		if obs.Lineage == "" {
			continue
		}
		if _, err := stmt.Exec(obs.Lineage, obs.Count, string(obs.Kind), obs.Source); err != nil {
			return fmt.Errorf("insert observation %s: %w", obs.Lineage, err)
		}
	}

	return tx.Commit()
}

func (e *SQLiteExporter) insertLineages(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO lineages (name, parent, depth, own_count, total_count,
			sample_count, internal_count, total_taxa, synthesized, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range e.Forest.All() {
		var parent *string
		if n.Parent != nil {
			p := n.Parent.Name
			parent = &p
		}
		synthesized := 0
		if n.Synthesized {
			synthesized = 1
		}
		_, err := stmt.Exec(
			n.Name, parent, n.Depth,
			n.OwnCount, n.TotalCount, n.SampleCount, n.InternalCount, n.TotalTaxa,
			synthesized, n.Color.Hex(),
		)
		if err != nil {
			return fmt.Errorf("insert lineage %s: %w", n.Name, err)
		}
	}

	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	timings, err := json.Marshal(metrics.AllTimingStats())
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}

	meta := map[string]string{
		"exported_at":  time.Now().UTC().Format(time.RFC3339),
		"data_hash":    e.DataHash(),
		"tool_version": version.Version,
		"grand_total":  fmt.Sprintf("%d", e.Forest.GrandTotal()),
		"lineages":     fmt.Sprintf("%d", e.Forest.Len()),
		"timings":      string(timings),
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := db.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", k, meta[k]); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	return nil
}

func optimizeDatabase(db *sql.DB, pageSize int) error {
	if pageSize > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA page_size = %d", pageSize)); err != nil {
			return err
		}
	}
	if _, err := db.Exec("VACUUM"); err != nil {
		return err
	}
	_, err := db.Exec("ANALYZE")
	return err
}

// summarySidecar is the shape of the summary.json artifact.
type summarySidecar struct {
	ExportedAt string            `json:"exported_at"`
	DataHash   string            `json:"data_hash"`
	Version    string            `json:"version"`
	Summary    *analysis.Summary `json:"summary,omitempty"`
	Roots      []string          `json:"roots"`
}

func (e *SQLiteExporter) writeSummaryJSON(outputDir string) error {
	roots := make([]string, 0, len(e.Forest.Roots()))
	for _, r := range e.Forest.Roots() {
		roots = append(roots, r.Name)
	}

	sidecar := summarySidecar{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		DataHash:   e.DataHash(),
		Version:    version.Version,
		Summary:    e.Summary,
		Roots:      roots,
	}

	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "summary.json"), data, 0o644)
}
