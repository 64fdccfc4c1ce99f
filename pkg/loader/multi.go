package loader

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/cladeview/cladeview/pkg/model"
)

// Dataset is one named observation source to merge.
type Dataset struct {
	// Name tags merged observations via Observation.Source.
	Name string
	// Path is the JSONL file to load.
	Path string
}

// DatasetResult is the per-dataset outcome of a merged load.
type DatasetResult struct {
	Name         string
	Path         string
	Observations []model.Observation
	Error        error
}

// MultiLoader merges observations from several datasets in parallel.
// Individual dataset failures are recorded, not fatal, so one broken
// file does not hide the rest of the data.
type MultiLoader struct {
	opts   ParseOptions
	logger *log.Logger
}

// NewMultiLoader returns a loader with the given per-file parse options.
func NewMultiLoader(opts ParseOptions) *MultiLoader {
	return &MultiLoader{
		opts: opts,
		// Silence by default. Callers can opt in via SetLogger; this
		// keeps stderr clean for robot consumers capturing combined
		// output.
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets a custom logger for per-dataset error reporting.
func (l *MultiLoader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// LoadAll loads every dataset concurrently and returns the merged
// observations in dataset order, each tagged with its dataset name.
func (l *MultiLoader) LoadAll(ctx context.Context, datasets []Dataset) ([]model.Observation, []DatasetResult, error) {
	if len(datasets) == 0 {
		return nil, nil, fmt.Errorf("no datasets to load")
	}

	results := make([]DatasetResult, len(datasets))

	g, ctx := errgroup.WithContext(ctx)
	// Bounded so a long dataset list cannot exhaust file descriptors.
	g.SetLimit(8)

	for i, ds := range datasets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = DatasetResult{Name: ds.Name, Path: ds.Path, Error: ctx.Err()}
				return nil
			default:
			}

			observations, err := LoadObservationsFromFileWithOptions(ds.Path, l.opts)
			for j := range observations {
				observations[j].Source = ds.Name
			}
			results[i] = DatasetResult{
				Name:         ds.Name,
				Path:         ds.Path,
				Observations: observations,
				Error:        err,
			}
			// Individual dataset errors live in results, not here.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, results, err
	}

	var merged []model.Observation
	for _, r := range results {
		if r.Error != nil {
			l.logger.Printf("dataset %s (%s): %v", r.Name, r.Path, r.Error)
			continue
		}
		merged = append(merged, r.Observations...)
	}
	return merged, results, nil
}
