package storage

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"skedge.dev/csa/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	metaDB   *sql.DB
	datasets map[string]*sql.DB
}

type SQLiteTimetableWriter struct {
	db                    *sql.DB
	connectionInsertQuery *sql.Stmt
	connectionInsertTx    *sql.Tx
}

type SQLiteTimetableReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/csa.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS timetable (
    name TEXT NOT NULL,
    imported_at TIMESTAMP NOT NULL,
    stops INTEGER NOT NULL,
    connections INTEGER NOT NULL,
PRIMARY KEY (name)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating timetable table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		metaDB:   db,
		datasets: map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListTimetables(filter ListTimetablesFilter) ([]*TimetableMetadata, error) {
	query := `
SELECT
    name,
    imported_at,
    stops,
    connections
FROM timetable`

	params := []interface{}{}
	if filter.Name != "" {
		query += " WHERE name = ?"
		params = append(params, filter.Name)
	}

	query += " ORDER BY imported_at DESC"

	rows, err := s.metaDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing timetables: %w", err)
	}
	defer rows.Close()

	var metadata []*TimetableMetadata
	for rows.Next() {
		var m TimetableMetadata
		err := rows.Scan(
			&m.Name,
			&m.ImportedAt,
			&m.Stops,
			&m.Connections,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning timetable: %w", err)
		}
		metadata = append(metadata, &m)
	}

	return metadata, nil
}

func (s *SQLiteStorage) WriteTimetableMetadata(metadata *TimetableMetadata) error {
	_, err := s.metaDB.Exec(`
INSERT INTO timetable (
    name,
    imported_at,
    stops,
    connections
)
VALUES (?, ?, ?, ?)
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

func (s *SQLiteStorage) GetReader(name string) (TimetableReader, error) {
	db, found := s.datasets[name]
	if found {
		return &SQLiteTimetableReader{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("dataset %s does not exist", name)
	}

	sourceName := s.Directory + "/" + name + ".db"
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset %s does not exist at %s", name, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s.datasets[name] = db

	return &SQLiteTimetableReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(name string) (TimetableWriter, error) {
	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.Directory + "/" + name + ".db"
		// delete file if it exists
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE connections (
    trip_id TEXT NOT NULL,
    route_desc TEXT NOT NULL,
    dep_stop INTEGER NOT NULL,
    arr_stop INTEGER NOT NULL,
    dep_time TIMESTAMP NOT NULL,
    arr_time TIMESTAMP NOT NULL,
    distribution_id INTEGER NOT NULL,
    dep_lat REAL NOT NULL,
    dep_lon REAL NOT NULL,
    arr_lat REAL NOT NULL,
    arr_lon REAL NOT NULL
);
CREATE INDEX connections_dep_time ON connections (dep_time);
CREATE INDEX connections_arr_time ON connections (arr_time);

CREATE TABLE footpaths (
    dep_stop INTEGER NOT NULL,
    arr_stop INTEGER NOT NULL,
    minutes REAL NOT NULL,
PRIMARY KEY (dep_stop, arr_stop)
);

CREATE TABLE distribution_points (
    distribution_id INTEGER NOT NULL,
    delay_min INTEGER NOT NULL,
    proba REAL NOT NULL,
PRIMARY KEY (distribution_id, delay_min)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dataset tables: %w", err)
	}

	s.datasets[name] = db

	return &SQLiteTimetableWriter{db: db}, nil
}

func (w *SQLiteTimetableWriter) BeginConnections() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO connections (
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
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing connection insert: %w", err)
	}

	w.connectionInsertTx = tx
	w.connectionInsertQuery = stmt
	return nil
}

func (w *SQLiteTimetableWriter) WriteConnection(c model.Connection) error {
	if w.connectionInsertQuery == nil {
		return fmt.Errorf("BeginConnections was not called")
	}

	_, err := w.connectionInsertQuery.Exec(
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
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

func (w *SQLiteTimetableWriter) EndConnections() error {
	if w.connectionInsertTx == nil {
		return fmt.Errorf("BeginConnections was not called")
	}

	err := w.connectionInsertQuery.Close()
	if err != nil {
		w.connectionInsertTx.Rollback()
		return fmt.Errorf("closing connection insert: %w", err)
	}

	err = w.connectionInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing connections: %w", err)
	}

	w.connectionInsertQuery = nil
	w.connectionInsertTx = nil
	return nil
}

func (w *SQLiteTimetableWriter) WriteFootpath(walk Walk) error {
	if walk.DepStop == walk.ArrStop {
		return fmt.Errorf("footpath with self-loop at stop %d", walk.DepStop)
	}

	_, err := w.db.Exec(`
INSERT INTO footpaths (dep_stop, arr_stop, minutes)
VALUES (?, ?, ?)`,
		walk.DepStop, walk.ArrStop, walk.Minutes)
	if err != nil {
		return fmt.Errorf("inserting footpath: %w", err)
	}
	return nil
}

func (w *SQLiteTimetableWriter) WriteDistribution(d *model.Distribution) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	for i, t := range d.Times {
		_, err = tx.Exec(`
INSERT INTO distribution_points (distribution_id, delay_min, proba)
VALUES (?, ?, ?)`,
			d.ID, t, d.Probas[i])
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

func (w *SQLiteTimetableWriter) Close() error {
	return nil
}

func (r *SQLiteTimetableReader) Connections(latestArrival time.Time) ([]model.Connection, error) {
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
WHERE arr_time <= ?
ORDER BY dep_time DESC`, latestArrival)
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

func (r *SQLiteTimetableReader) Footpaths() ([]Walk, error) {
	rows, err := r.db.Query(`
SELECT dep_stop, arr_stop, minutes
FROM footpaths`)
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

func (r *SQLiteTimetableReader) Distributions() (map[int]*model.Distribution, error) {
	rows, err := r.db.Query(`
SELECT distribution_id, delay_min, proba
FROM distribution_points
ORDER BY distribution_id, delay_min`)
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
