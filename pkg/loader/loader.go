// Package loader reads lineage observations from JSONL files. Each line
// is one Observation record; malformed lines are skipped with a warning
// rather than failing the whole load, so one bad record cannot take
// down the dataset.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/model"
)

// CladesDirEnvVar is the name of the environment variable for a custom
// clades data directory.
const CladesDirEnvVar = "CLADES_DIR"

// PreferredJSONLNames defines the priority order for looking up
// observation data files.
var PreferredJSONLNames = []string{"observations.jsonl", "lineages.jsonl", "clades.jsonl"}

// GetCladesDir returns the clades data directory, respecting CLADES_DIR.
// Otherwise falls back to .clades in the given path (or cwd if empty).
func GetCladesDir(dataPath string) (string, error) {
	if envDir := os.Getenv(CladesDirEnvVar); envDir != "" {
		return envDir, nil
	}

	if dataPath == "" {
		var err error
		dataPath, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	return filepath.Join(dataPath, ".clades"), nil
}

// FindJSONLPath locates the observations JSONL file in the given
// directory, preferring the canonical observations.jsonl and skipping
// backup and merge artifacts.
func FindJSONLPath(cladesDir string) (string, error) {
	entries, err := os.ReadDir(cladesDir)
	if err != nil {
		return "", fmt.Errorf("failed to read clades directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".merge") {
			continue
		}
		candidates = append(candidates, name)
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no observations JSONL file found in %s", cladesDir)
	}

	for _, preferred := range PreferredJSONLNames {
		for _, name := range candidates {
			if name == preferred {
				path := filepath.Join(cladesDir, name)
				if info, err := os.Stat(path); err == nil && info.Size() > 0 {
					return path, nil
				}
			}
		}
	}

	// Fall back to first non-empty candidate.
	for _, name := range candidates {
		path := filepath.Join(cladesDir, name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}

	// Last resort: return first candidate even if empty.
	return filepath.Join(cladesDir, candidates[0]), nil
}

// DefaultMaxBufferSize is the default maximum line size (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of ParseObservations.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed
	// JSON). If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize.
	BufferSize int

	// Filter optionally filters parsed observations. Return true to
	// include. When nil, all valid observations are included.
	Filter func(*model.Observation) bool
}

// LoadObservations reads observations from the clades directory,
// respecting CLADES_DIR, otherwise .clades under dataPath.
func LoadObservations(dataPath string) ([]model.Observation, error) {
	cladesDir, err := GetCladesDir(dataPath)
	if err != nil {
		return nil, err
	}

	jsonlPath, err := FindJSONLPath(cladesDir)
	if err != nil {
		return nil, err
	}

	return LoadObservationsFromFile(jsonlPath)
}

// LoadObservationsFromFile reads observations from a specific JSONL file.
func LoadObservationsFromFile(path string) ([]model.Observation, error) {
	return LoadObservationsFromFileWithOptions(path, ParseOptions{})
}

// LoadObservationsFromFileWithOptions reads observations with custom
// options.
func LoadObservationsFromFileWithOptions(path string, opts ParseOptions) ([]model.Observation, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no observations found at %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open observations file: %w", err)
	}
	defer file.Close()

	return ParseObservationsWithOptions(file, opts)
}

// ParseObservations parses JSONL content from a reader. Handles UTF-8
// BOM stripping, oversized lines, and validation.
func ParseObservations(r io.Reader) ([]model.Observation, error) {
	return ParseObservationsWithOptions(r, ParseOptions{})
}

// ParseObservationsWithOptions parses JSONL content with custom options.
func ParseObservationsWithOptions(r io.Reader, opts ParseOptions) ([]model.Observation, error) {
	defer metrics.Timer(metrics.ParseObservations)()

	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}

	reader := bufio.NewReaderSize(r, maxCapacity)

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}

	var observations []model.Observation
	lineNum := 0
	for {
		lineNum++
		// ReadLine returns a single line, not including the end-of-line
		// bytes. If the line was too long for the buffer then isPrefix
		// is set and the beginning of the line is returned.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading observations stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			// Line too long. Discard the rest of the line.
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil && err != io.EOF {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
				if err == io.EOF {
					break
				}
			}
			continue
		}

		if len(line) == 0 {
			continue
		}

		// Strip UTF-8 BOM if present on the first line
		if lineNum == 1 {
			line = stripBOM(line)
		}

		var obs model.Observation
		if err := json.Unmarshal(line, &obs); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}

		obs.Normalize()

		if err := obs.Validate(); err != nil {
			warn(fmt.Sprintf("skipping invalid observation on line %d: %v", lineNum, err))
			continue
		}

		if opts.Filter != nil && !opts.Filter(&obs) {
			continue
		}

		observations = append(observations, obs)
	}

	return observations, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
