package datasource

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cladeview/cladeview/pkg/model"
)

// SQLiteReader provides read access to an observations SQLite database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	// Open in read-only mode with various pragmas for read performance
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set pragmas for read performance
	pragmas := []string{
		"PRAGMA cache_size = -64000",   // 64MB cache
		"PRAGMA mmap_size = 268435456", // 256MB mmap
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// Non-fatal, just log
		}
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadObservations reads all observations from the database
func (r *SQLiteReader) LoadObservations() ([]model.Observation, error) {
	return r.LoadObservationsFiltered(nil)
}

// LoadObservationsFiltered reads observations matching the filter function
func (r *SQLiteReader) LoadObservationsFiltered(filter func(*model.Observation) bool) ([]model.Observation, error) {
	query := `
		SELECT lineage, count, kind, source
		FROM observations
		ORDER BY lineage
	`

	rows, err := r.db.Query(query)
	if err != nil {
		// Try simpler query if some columns don't exist
		return r.loadObservationsSimple(filter)
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		var obs model.Observation
		var count sql.NullInt64
		var kind, source sql.NullString

		if err := rows.Scan(&obs.Lineage, &count, &kind, &source); err != nil {
			continue
		}

		if count.Valid {
			obs.Count = int(count.Int64)
		}
		if kind.Valid {
			obs.Kind = model.NodeKind(kind.String)
		}
		if source.Valid {
			obs.Source = source.String
		}
		obs.Normalize()
		if err := obs.Validate(); err != nil {
			continue
		}

		if filter != nil && !filter(&obs) {
			continue
		}

		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}

// loadObservationsSimple is a fallback for databases with fewer columns
func (r *SQLiteReader) loadObservationsSimple(filter func(*model.Observation) bool) ([]model.Observation, error) {
	query := `SELECT lineage, count FROM observations ORDER BY lineage`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		var obs model.Observation
		var count sql.NullInt64

		if err := rows.Scan(&obs.Lineage, &count); err != nil {
			continue
		}
		if count.Valid {
			obs.Count = int(count.Int64)
		}
		obs.Normalize()
		if err := obs.Validate(); err != nil {
			continue
		}

		if filter != nil && !filter(&obs) {
			continue
		}

		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}

// CountObservations returns the number of observation rows
func (r *SQLiteReader) CountObservations() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetObservationsByLineage retrieves observations for a single lineage name
func (r *SQLiteReader) GetObservationsByLineage(lineage string) ([]model.Observation, error) {
	observations, err := r.LoadObservationsFiltered(func(obs *model.Observation) bool {
		return obs.Lineage == lineage
	})
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("lineage not found: %s", lineage)
	}
	return observations, nil
}

// GetLastModified returns the most recent update time recorded in the
// meta table, or the zero time if the table is absent.
func (r *SQLiteReader) GetLastModified() (time.Time, error) {
	var value sql.NullString
	err := r.db.QueryRow("SELECT value FROM meta WHERE key = 'exported_at'").Scan(&value)
	if err != nil {
		return time.Time{}, nil
	}
	if !value.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}
