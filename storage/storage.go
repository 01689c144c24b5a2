package storage

import (
	"time"

	"skedge.dev/csa/model"
)

type Storage interface {
	// Retrieves metadata for all stored timetable datasets
	// matching the given filter.
	ListTimetables(filter ListTimetablesFilter) ([]*TimetableMetadata, error)

	// Writes a TimetableMetadata record. If a record with the
	// same name exists, it is updated.
	WriteTimetableMetadata(metadata *TimetableMetadata) error

	// Gets a reader for the dataset with the given name.
	GetReader(name string) (TimetableReader, error)

	// Gets a writer for the dataset with the given name.
	GetWriter(name string) (TimetableWriter, error)
}

type ListTimetablesFilter struct {
	// If set, only include datasets with the given name.
	Name string
}

// Metadata for an ingested timetable dataset. The records themselves
// are accessed via TimetableReader.
type TimetableMetadata struct {
	Name        string
	ImportedAt  time.Time
	Stops       int
	Connections int
}

// A raw walking edge between two stops, in fractional minutes. The
// router ceils walk times to whole minutes; storage keeps what the
// dataset provided.
type Walk struct {
	DepStop int
	ArrStop int
	Minutes float64
}

// Writes timetable records for a single dataset.
//
// Connection tables tend to be large, so BeginConnections() and
// EndConnections() bracket all calls to WriteConnection(), allowing
// transactions/batching/whathaveyou.
type TimetableWriter interface {
	WriteConnection(c model.Connection) error
	BeginConnections() error
	EndConnections() error
	WriteFootpath(w Walk) error
	WriteDistribution(d *model.Distribution) error
	Close() error
}

type TimetableReader interface {
	// Connections with arrival_time no later than latestArrival,
	// sorted descending by departure_time. This is the exact
	// order the reverse scan consumes.
	Connections(latestArrival time.Time) ([]model.Connection, error)

	// All walking edges in the dataset.
	Footpaths() ([]Walk, error)

	// The delay distribution catalogue, keyed by distribution id.
	Distributions() (map[int]*model.Distribution, error)
}
