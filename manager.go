package csa

import (
	"errors"
	"fmt"

	"skedge.dev/csa/storage"
)

var ErrNoTimetable = errors.New("no timetable dataset found")

// Manager hands out Planners for the timetable datasets held in a
// Storage, one Planner per dataset.
type Manager struct {
	storage  storage.Storage
	planners map[string]*Planner
}

func NewManager(s storage.Storage) *Manager {
	return &Manager{
		storage:  s,
		planners: map[string]*Planner{},
	}
}

// Loads the planner for a named dataset, building it on first use.
func (m *Manager) LoadPlanner(name string) (*Planner, error) {
	if planner, found := m.planners[name]; found {
		return planner, nil
	}

	metadata, err := m.storage.ListTimetables(storage.ListTimetablesFilter{Name: name})
	if err != nil {
		return nil, fmt.Errorf("listing timetables: %w", err)
	}
	if len(metadata) == 0 {
		return nil, ErrNoTimetable
	}

	reader, err := m.storage.GetReader(name)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	planner, err := NewPlanner(reader)
	if err != nil {
		return nil, fmt.Errorf("creating planner: %w", err)
	}

	m.planners[name] = planner
	return planner, nil
}

// Timetables lists the datasets known to the underlying storage.
func (m *Manager) Timetables() ([]*storage.TimetableMetadata, error) {
	return m.storage.ListTimetables(storage.ListTimetablesFilter{})
}
