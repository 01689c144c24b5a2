// Package csa computes robust public-transit itineraries. A reverse
// connection scan sweeps the timetable in descending departure order,
// building per-stop journey pointers; a second phase reconstructs
// concrete multi-segment journeys and scores each by its probability
// of surviving the delays drawn from per-connection distributions.
package csa

import (
	"context"
	"fmt"

	"skedge.dev/csa/model"
	"skedge.dev/csa/storage"
)

// Planner answers itinerary queries against one timetable dataset.
//
// The footpath adjacency and delay distributions are loaded once at
// construction; connections are read per query, since the reverse
// scan wants them pre-filtered by the query deadline.
type Planner struct {
	reader        storage.TimetableReader
	footpaths     *FootpathGraph
	distributions map[int]*model.Distribution
}

func NewPlanner(reader storage.TimetableReader) (*Planner, error) {
	walks, err := reader.Footpaths()
	if err != nil {
		return nil, fmt.Errorf("loading footpaths: %w", err)
	}

	distributions, err := reader.Distributions()
	if err != nil {
		return nil, fmt.Errorf("loading distributions: %w", err)
	}

	return &Planner{
		reader:        reader,
		footpaths:     FootpathGraphFromWalks(walks),
		distributions: distributions,
	}, nil
}

// Plan returns ranked journeys for the query. An unreachable
// destination yields an empty list, not an error.
func (p *Planner) Plan(ctx context.Context, q Query) ([]Journey, error) {
	connections, err := p.reader.Connections(q.TargetArrival)
	if err != nil {
		return nil, fmt.Errorf("loading connections: %w", err)
	}

	return Scan(ctx, connections, p.footpaths, p.distributions, q)
}
