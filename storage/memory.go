package storage

import (
	"fmt"
	"sort"
	"time"

	"skedge.dev/csa/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Datasets map[string]*MemoryDataset
	Metadata map[string]*TimetableMetadata
}

type MemoryDataset struct {
	Connections   []model.Connection
	Walks         []Walk
	Distributions map[int]*model.Distribution
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Datasets: map[string]*MemoryDataset{},
		Metadata: map[string]*TimetableMetadata{},
	}
}

func (s *MemoryStorage) ListTimetables(filter ListTimetablesFilter) ([]*TimetableMetadata, error) {
	metadata := []*TimetableMetadata{}
	for _, m := range s.Metadata {
		if filter.Name != "" && m.Name != filter.Name {
			continue
		}
		metadata = append(metadata, m)
	}
	sort.Slice(metadata, func(i, j int) bool {
		return metadata[i].ImportedAt.After(metadata[j].ImportedAt)
	})
	return metadata, nil
}

func (s *MemoryStorage) WriteTimetableMetadata(metadata *TimetableMetadata) error {
	s.Metadata[metadata.Name] = metadata
	return nil
}

func (s *MemoryStorage) GetWriter(name string) (TimetableWriter, error) {
	dataset := &MemoryDataset{
		Distributions: map[int]*model.Distribution{},
	}
	s.Datasets[name] = dataset
	return &MemoryTimetableWriter{dataset: dataset}, nil
}

func (s *MemoryStorage) GetReader(name string) (TimetableReader, error) {
	dataset, found := s.Datasets[name]
	if !found {
		return nil, fmt.Errorf("no dataset named %q", name)
	}
	return &MemoryTimetableReader{dataset: dataset}, nil
}

type MemoryTimetableWriter struct {
	dataset *MemoryDataset
}

func (w *MemoryTimetableWriter) BeginConnections() error { return nil }
func (w *MemoryTimetableWriter) EndConnections() error   { return nil }

func (w *MemoryTimetableWriter) WriteConnection(c model.Connection) error {
	w.dataset.Connections = append(w.dataset.Connections, c)
	return nil
}

func (w *MemoryTimetableWriter) WriteFootpath(walk Walk) error {
	if walk.DepStop == walk.ArrStop {
		return fmt.Errorf("footpath with self-loop at stop %d", walk.DepStop)
	}
	w.dataset.Walks = append(w.dataset.Walks, walk)
	return nil
}

func (w *MemoryTimetableWriter) WriteDistribution(d *model.Distribution) error {
	w.dataset.Distributions[d.ID] = d
	return nil
}

func (w *MemoryTimetableWriter) Close() error { return nil }

type MemoryTimetableReader struct {
	dataset *MemoryDataset
}

func (r *MemoryTimetableReader) Connections(latestArrival time.Time) ([]model.Connection, error) {
	connections := []model.Connection{}
	for _, c := range r.dataset.Connections {
		if c.ArrTime.After(latestArrival) {
			continue
		}
		connections = append(connections, c)
	}
	sort.SliceStable(connections, func(i, j int) bool {
		return connections[j].DepTime.Before(connections[i].DepTime)
	})
	return connections, nil
}

func (r *MemoryTimetableReader) Footpaths() ([]Walk, error) {
	return append([]Walk(nil), r.dataset.Walks...), nil
}

func (r *MemoryTimetableReader) Distributions() (map[int]*model.Distribution, error) {
	distributions := map[int]*model.Distribution{}
	for id, d := range r.dataset.Distributions {
		distributions[id] = d
	}
	return distributions, nil
}
