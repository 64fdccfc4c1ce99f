package datasource

import (
	"fmt"

	"github.com/cladeview/cladeview/pkg/model"
)

// SourceDiff represents differences between two data sources
type SourceDiff struct {
	// SourceA is the path of the first source
	SourceA string
	// SourceB is the path of the second source
	SourceB string
	// MissingInA contains lineage names present in B but not in A
	MissingInA []string
	// MissingInB contains lineage names present in A but not in B
	MissingInB []string
	// CountMismatch contains lineages with different counts between sources
	CountMismatch []CountDifference
	// LineagesA is the number of distinct lineages in source A
	LineagesA int
	// LineagesB is the number of distinct lineages in source B
	LineagesB int
}

// CountDifference represents a count mismatch for a single lineage
type CountDifference struct {
	Lineage string `json:"lineage"`
	CountA  int    `json:"count_a"`
	CountB  int    `json:"count_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.CountMismatch) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d lineages each)", d.LineagesA)
	}

	summary := fmt.Sprintf("Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)

	if d.LineagesA != d.LineagesB {
		summary += fmt.Sprintf("  - Lineage count mismatch: %d vs %d\n", d.LineagesA, d.LineagesB)
	}

	if len(d.MissingInA) > 0 {
		summary += fmt.Sprintf("  - %d lineages in %s but not %s\n", len(d.MissingInA), d.SourceB, d.SourceA)
		if len(d.MissingInA) <= 5 {
			for _, name := range d.MissingInA {
				summary += fmt.Sprintf("    - %s\n", name)
			}
		}
	}

	if len(d.MissingInB) > 0 {
		summary += fmt.Sprintf("  - %d lineages in %s but not %s\n", len(d.MissingInB), d.SourceA, d.SourceB)
		if len(d.MissingInB) <= 5 {
			for _, name := range d.MissingInB {
				summary += fmt.Sprintf("    - %s\n", name)
			}
		}
	}

	if len(d.CountMismatch) > 0 {
		summary += fmt.Sprintf("  - %d lineages with different counts\n", len(d.CountMismatch))
		if len(d.CountMismatch) <= 5 {
			for _, m := range d.CountMismatch {
				summary += fmt.Sprintf("    - %s: %d vs %d\n", m.Lineage, m.CountA, m.CountB)
			}
		}
	}

	return summary
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// IgnoreZeroCounts excludes zero-count observations from comparison
	IgnoreZeroCounts bool
	// MaxDifferences limits the number of differences tracked (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		IgnoreZeroCounts: false,
		MaxDifferences:   100,
	}
}

// DetectInconsistencies compares two sets of observations and returns
// differences. Observations are aggregated by lineage name before comparing,
// so duplicate rows for the same lineage are summed on each side.
func DetectInconsistencies(obsA, obsB []model.Observation, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{
		SourceA: sourceA,
		SourceB: sourceB,
	}

	mapA := aggregateByLineage(obsA, opts)
	mapB := aggregateByLineage(obsB, opts)

	diff.LineagesA = len(mapA)
	diff.LineagesB = len(mapB)

	// Find lineages in A but not in B
	for name := range mapA {
		if _, exists := mapB[name]; !exists {
			if opts.MaxDifferences == 0 || len(diff.MissingInB) < opts.MaxDifferences {
				diff.MissingInB = append(diff.MissingInB, name)
			}
		}
	}

	// Find lineages in B but not in A, and count mismatches
	for name, countB := range mapB {
		countA, exists := mapA[name]
		if !exists {
			if opts.MaxDifferences == 0 || len(diff.MissingInA) < opts.MaxDifferences {
				diff.MissingInA = append(diff.MissingInA, name)
			}
		} else if countA != countB {
			if opts.MaxDifferences == 0 || len(diff.CountMismatch) < opts.MaxDifferences {
				diff.CountMismatch = append(diff.CountMismatch, CountDifference{
					Lineage: name,
					CountA:  countA,
					CountB:  countB,
				})
			}
		}
	}

	return diff
}

// aggregateByLineage sums observation counts per lineage name
func aggregateByLineage(observations []model.Observation, opts DiffOptions) map[string]int {
	totals := make(map[string]int)
	for _, obs := range observations {
		if obs.Lineage == "" {
			continue
		}
		if opts.IgnoreZeroCounts && obs.Count == 0 {
			continue
		}
		totals[obs.Lineage] += obs.Count
	}
	return totals
}

// CompareSources loads and compares two data sources
func CompareSources(sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	obsA, err := LoadFromSource(sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}

	obsB, err := LoadFromSource(sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}

	diff := DetectInconsistencies(obsA, obsB, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// CheckAllSourcesConsistent compares all sources and reports any inconsistencies
func CheckAllSourcesConsistent(sources []DataSource, opts DiffOptions) ([]SourceDiff, error) {
	var diffs []SourceDiff

	// Compare each valid source with every other valid source
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}

			diff, err := CompareSources(sources[i], sources[j], opts)
			if err != nil {
				// Log error but continue
				continue
			}

			if diff.HasInconsistencies() {
				diffs = append(diffs, *diff)
			}
		}
	}

	return diffs, nil
}

// InconsistencyReport provides a comprehensive report of all source inconsistencies
type InconsistencyReport struct {
	// Sources is the list of all sources checked
	Sources []DataSource
	// Diffs contains all detected differences
	Diffs []SourceDiff
	// TotalInconsistencies is the total number of inconsistencies found
	TotalInconsistencies int
	// HasCriticalInconsistencies indicates severe problems (count differences)
	HasCriticalInconsistencies bool
}

// GenerateInconsistencyReport creates a comprehensive report
func GenerateInconsistencyReport(sources []DataSource, opts DiffOptions) (*InconsistencyReport, error) {
	diffs, err := CheckAllSourcesConsistent(sources, opts)
	if err != nil {
		return nil, err
	}

	report := &InconsistencyReport{
		Sources: sources,
		Diffs:   diffs,
	}

	for _, diff := range diffs {
		report.TotalInconsistencies += len(diff.MissingInA) + len(diff.MissingInB) + len(diff.CountMismatch)
		if len(diff.CountMismatch) > 0 {
			report.HasCriticalInconsistencies = true
		}
	}

	return report, nil
}
