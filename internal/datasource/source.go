// Package datasource provides multi-source detection and selection for
// cladeview. It discovers, validates, and selects the freshest valid
// observation source from SQLite databases and JSONL files.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cladeview/cladeview/pkg/loader"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite observations database (observations.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSONL observations file
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
)

// DataSource represents a potential source of observation data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// RecordCount is the number of observations in the source (set during validation)
	RecordCount int `json:"record_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, records=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.RecordCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// CladesDir is the .clades directory path (optional, auto-detected if empty)
	CladesDir string
	// DataPath is the project root path (optional, uses cwd if empty)
	DataPath string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives log messages; nil discards them
	Logger func(msg string)
}

// DiscoverSources finds all potential observation sources in the clades
// directory, sorted freshest-first with priority breaking timestamp ties.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	logf := opts.Logger
	if logf == nil {
		logf = func(string) {}
	}

	cladesDir := opts.CladesDir
	if cladesDir == "" {
		var err error
		cladesDir, err = loader.GetCladesDir(opts.DataPath)
		if err != nil {
			return nil, err
		}
	}

	logf(fmt.Sprintf("Discovering sources in: %s", cladesDir))

	var sources []DataSource
	sources = append(sources, discoverSQLiteSources(cladesDir, logf)...)

	jsonlSources, err := discoverJSONLSources(cladesDir, logf)
	if err != nil {
		logf(fmt.Sprintf("JSONL discovery warning: %v", err))
	}
	sources = append(sources, jsonlSources...)

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf(fmt.Sprintf("Validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			var valid []DataSource
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	logf(fmt.Sprintf("Discovered %d sources", len(sources)))

	return sources, nil
}

// SelectBestSource returns the first valid source in discovery order.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	if len(sources) > 0 {
		return DataSource{}, fmt.Errorf("no valid source among %d discovered", len(sources))
	}
	return DataSource{}, fmt.Errorf("no sources discovered")
}

// ValidateSource checks that a source is readable and counts its records,
// updating the source in place.
func ValidateSource(s *DataSource) error {
	switch s.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(*s)
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		defer reader.Close()
		count, err := reader.CountObservations()
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		s.RecordCount = count
		s.Valid = true
		s.ValidationError = ""
		return nil

	case SourceTypeJSONL:
		observations, err := loader.LoadObservationsFromFileWithOptions(s.Path, loader.ParseOptions{
			WarningHandler: func(string) {},
		})
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		s.RecordCount = len(observations)
		s.Valid = true
		s.ValidationError = ""
		return nil

	default:
		s.Valid = false
		s.ValidationError = fmt.Sprintf("unknown source type %q", s.Type)
		return fmt.Errorf("unknown source type %q", s.Type)
	}
}

// discoverSQLiteSources finds observation databases in the clades directory
func discoverSQLiteSources(cladesDir string, logf func(string)) []DataSource {
	var sources []DataSource

	dbPath := filepath.Join(cladesDir, "observations.db")
	info, err := os.Stat(dbPath)
	if err == nil {
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logf(fmt.Sprintf("Found SQLite: %s (mod=%s)", dbPath, info.ModTime().Format(time.RFC3339)))
	}

	return sources
}

// discoverJSONLSources finds JSONL files in the clades directory
func discoverJSONLSources(cladesDir string, logf func(string)) ([]DataSource, error) {
	entries, err := os.ReadDir(cladesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read clades directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		// Skip backups and merge artifacts
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".merge") {
			continue
		}

		path := filepath.Join(cladesDir, name)
		info, err := e.Info()
		if err != nil {
			continue
		}

		sources = append(sources, DataSource{
			Type:     SourceTypeJSONL,
			Path:     path,
			Priority: jsonlPriority(name),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})

		logf(fmt.Sprintf("Found JSONL: %s (mod=%s)", path, info.ModTime().Format(time.RFC3339)))
	}

	return sources, nil
}

// jsonlPriority ranks canonical observation file names above ad-hoc
// exports, so equal-timestamp discovery resolves the same file the
// loader's own lookup would pick.
func jsonlPriority(name string) int {
	for i, preferred := range loader.PreferredJSONLNames {
		if name == preferred {
			return PriorityJSONL + len(loader.PreferredJSONLNames) - i
		}
	}
	return PriorityJSONL
}
