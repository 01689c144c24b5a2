package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"skedge.dev/csa/model"
)

const PSQLConnectionBatchSize = 5000

type PSQLStorage struct {
	db *sql.DB
}

type PSQLTimetableWriter struct {
	name          string
	db            *sql.DB
	connectionBuf []model.Connection
}

type PSQLTimetableReader struct {
	name string
	db   *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if db.Ping() != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS timetable;
DROP TABLE IF EXISTS connections;
DROP TABLE IF EXISTS footpaths;
DROP TABLE IF EXISTS distribution_points;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS timetable (
    name TEXT NOT NULL,
    imported_at TIMESTAMPTZ NOT NULL,
    stops INTEGER NOT NULL,
    connections INTEGER NOT NULL,
    PRIMARY KEY (name)
);

CREATE TABLE IF NOT EXISTS connections (
    dataset TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    route_desc TEXT NOT NULL,
    dep_stop INTEGER NOT NULL,
    arr_stop INTEGER NOT NULL,
    dep_time TIMESTAMPTZ NOT NULL,
    arr_time TIMESTAMPTZ NOT NULL,
    distribution_id INTEGER NOT NULL,
    dep_lat DOUBLE PRECISION NOT NULL,
    dep_lon DOUBLE PRECISION NOT NULL,
    arr_lat DOUBLE PRECISION NOT NULL,
    arr_lon DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS connections_dataset_dep_time ON connections (dataset, dep_time);

CREATE TABLE IF NOT EXISTS footpaths (
    dataset TEXT NOT NULL,
    dep_stop INTEGER NOT NULL,
    arr_stop INTEGER NOT NULL,
    minutes DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (dataset, dep_stop, arr_stop)
);

CREATE TABLE IF NOT EXISTS distribution_points (
    dataset TEXT NOT NULL,
    distribution_id INTEGER NOT NULL,
    delay_min INTEGER NOT NULL,
    proba DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (dataset, distribution_id, delay_min)
);`)
	if err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListTimetables(filter ListTimetablesFilter) ([]*TimetableMetadata, error) {
	query := `
SELECT
    name,
    imported_at,
    stops,
    connections
FROM timetable`

	params := []interface{}{}
	if filter.Name != "" {
		query += " WHERE name = $1"
		params = append(params, filter.Name)
	}

	query += " ORDER BY imported_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing timetables: %w", err)
	}
	defer rows.Close()

	var metadata []*TimetableMetadata
	for rows.Next() {
		var m TimetableMetadata
		err := rows.Scan(&m.Name, &m.ImportedAt, &m.Stops, &m.Connections)
		if err != nil {
			return nil, fmt.Errorf("scanning timetable: %w", err)
		}
		metadata = append(metadata, &m)
	}

	return metadata, nil
}

func (s *PSQLStorage) WriteTimetableMetadata(metadata *TimetableMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO timetable (name, imported_at, stops, connections)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
    imported_at = excluded.imported_at,
    stops = excluded.stops,
    connections = excluded.connections
`,
		metadata.Name,
		metadata.ImportedAt,
		metadata.Stops,
		metadata.Connections,
	)
	if err != nil {
		return fmt.Errorf("writing timetable metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) GetReader(name string) (TimetableReader, error) {
	return &PSQLTimetableReader{name: name, db: s.db}, nil
}

func (s *PSQLStorage) GetWriter(name string) (TimetableWriter, error) {
	// Clear out any previous ingest of the same dataset.
	for _, table := range []string{"connections", "footpaths", "distribution_points"} {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE dataset = $1", table), name)
		if err != nil {
			return nil, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	return &PSQLTimetableWriter{name: name, db: s.db}, nil
}

func (w *PSQLTimetableWriter) BeginConnections() error {
	return nil
}

func (w *PSQLTimetableWriter) WriteConnection(c model.Connection) error {
	w.connectionBuf = append(w.connectionBuf, c)
	if len(w.connectionBuf) >= PSQLConnectionBatchSize {
		return w.flushConnections()
	}
	return nil
}

func (w *PSQLTimetableWriter) EndConnections() error {
	return w.flushConnections()
}

func (w *PSQLTimetableWriter) flushConnections() error {
	if len(w.connectionBuf) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn(
		"connections",
		"dataset",
		"trip_id",
		"route_desc",
		"dep_stop",
		"arr_stop",
		"dep_time",
		"arr_time",
		"distribution_id",
		"dep_lat",
		"dep_lon",
		"arr_lat",
		"arr_lon",
	))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing copy: %w", err)
	}

	for _, c := range w.connectionBuf {
		_, err = stmt.Exec(
			w.name,
			c.TripID,
			c.RouteDesc,
			c.DepStop,
			c.ArrStop,
			c.DepTime,
			c.ArrTime,
			c.DistributionID,
			c.DepLat,
			c.DepLon,
			c.ArrLat,
			c.ArrLon,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("copying connection: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("closing copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing connections: %w", err)
	}

	w.connectionBuf = w.connectionBuf[:0]
	return nil
}

func (w *PSQLTimetableWriter) WriteFootpath(walk Walk) error {
	if walk.DepStop == walk.ArrStop {
		return fmt.Errorf("footpath with self-loop at stop %d", walk.DepStop)
	}

	_, err := w.db.Exec(`
INSERT INTO footpaths (dataset, dep_stop, arr_stop, minutes)
VALUES ($1, $2, $3, $4)`,
		w.name, walk.DepStop, walk.ArrStop, walk.Minutes)
	if err != nil {
		return fmt.Errorf("inserting footpath: %w", err)
	}
	return nil
}

func (w *PSQLTimetableWriter) WriteDistribution(d *model.Distribution) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	for i, t := range d.Times {
		_, err = tx.Exec(`
INSERT INTO distribution_points (dataset, distribution_id, delay_min, proba)
VALUES ($1, $2, $3, $4)`,
			w.name, d.ID, t, d.Probas[i])
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting distribution point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing distribution: %w", err)
	}
	return nil
}

func (w *PSQLTimetableWriter) Close() error {
	return w.flushConnections()
}

func (r *PSQLTimetableReader) Connections(latestArrival time.Time) ([]model.Connection, error) {
	rows, err := r.db.Query(`
SELECT
    trip_id,
    route_desc,
    dep_stop,
    arr_stop,
    dep_time,
    arr_time,
    distribution_id,
    dep_lat,
    dep_lon,
    arr_lat,
    arr_lon
FROM connections
WHERE dataset = $1 AND arr_time <= $2
ORDER BY dep_time DESC`, r.name, latestArrival)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	connections := []model.Connection{}
	for rows.Next() {
		var c model.Connection
		err := rows.Scan(
			&c.TripID,
			&c.RouteDesc,
			&c.DepStop,
			&c.ArrStop,
			&c.DepTime,
			&c.ArrTime,
			&c.DistributionID,
			&c.DepLat,
			&c.DepLon,
			&c.ArrLat,
			&c.ArrLon,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		connections = append(connections, c)
	}

	return connections, nil
}

func (r *PSQLTimetableReader) Footpaths() ([]Walk, error) {
	rows, err := r.db.Query(`
SELECT dep_stop, arr_stop, minutes
FROM footpaths
WHERE dataset = $1`, r.name)
	if err != nil {
		return nil, fmt.Errorf("querying footpaths: %w", err)
	}
	defer rows.Close()

	walks := []Walk{}
	for rows.Next() {
		var w Walk
		err := rows.Scan(&w.DepStop, &w.ArrStop, &w.Minutes)
		if err != nil {
			return nil, fmt.Errorf("scanning footpath: %w", err)
		}
		walks = append(walks, w)
	}

	return walks, nil
}

func (r *PSQLTimetableReader) Distributions() (map[int]*model.Distribution, error) {
	rows, err := r.db.Query(`
SELECT distribution_id, delay_min, proba
FROM distribution_points
WHERE dataset = $1
ORDER BY distribution_id, delay_min`, r.name)
	if err != nil {
		return nil, fmt.Errorf("querying distribution points: %w", err)
	}
	defer rows.Close()

	times := map[int][]int{}
	probas := map[int][]float64{}
	for rows.Next() {
		var id, delay int
		var proba float64
		err := rows.Scan(&id, &delay, &proba)
		if err != nil {
			return nil, fmt.Errorf("scanning distribution point: %w", err)
		}
		times[id] = append(times[id], delay)
		probas[id] = append(probas[id], proba)
	}

	distributions := map[int]*model.Distribution{}
	for id := range times {
		d, err := model.NewDistribution(id, times[id], probas[id])
		if err != nil {
			return nil, fmt.Errorf("assembling distribution %d: %w", id, err)
		}
		distributions[id] = d
	}

	return distributions, nil
}
