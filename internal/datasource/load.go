package datasource

import (
	"fmt"

	"github.com/cladeview/cladeview/pkg/debug"
	"github.com/cladeview/cladeview/pkg/loader"
	"github.com/cladeview/cladeview/pkg/model"
)

// LoadObservations loads from the freshest valid source under the clades
// directory resolved from dataPath (empty means the working directory).
func LoadObservations(dataPath string) ([]model.Observation, error) {
	cladesDir, err := loader.GetCladesDir(dataPath)
	if err != nil {
		return nil, err
	}
	return LoadObservationsFromDir(cladesDir)
}

// LoadObservationsFromDir discovers and validates the sources in a known
// clades directory, then loads the freshest valid one. Canonical file
// names outrank ad-hoc exports when timestamps tie, so a directory with
// both observations.jsonl and scratch copies resolves the same way every
// run.
func LoadObservationsFromDir(cladesDir string) ([]model.Observation, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		CladesDir:              cladesDir,
		ValidateAfterDiscovery: true,
		Logger:                 func(msg string) { debug.Log("datasource: %s", msg) },
	})
	if err != nil {
		return nil, err
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, fmt.Errorf("no loadable source in %s: %w", cladesDir, err)
	}
	debug.Log("datasource: selected %s", best)

	return LoadFromSource(best)
}

// LoadFromSource loads observations from a specific DataSource, dispatching
// to the appropriate reader based on source type.
func LoadFromSource(source DataSource) ([]model.Observation, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadObservations()

	case SourceTypeJSONL:
		return loader.LoadObservationsFromFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
