package csa

import (
	"context"
	"time"

	"skedge.dev/csa/model"
)

// Scan runs the reverse connection scan over the timetable and
// returns ranked journeys from q.Source to q.Destination arriving no
// later than q.TargetArrival.
//
// connections must be sorted descending by departure time and
// contain no connection arriving after q.TargetArrival; readers
// obtained from the storage package hand them over that way. The
// slice doubles as the arena the journey pointers index into, so it
// must not be modified while Scan runs.
//
// An unreachable destination or an empty timetable is not an error:
// the result is simply empty.
func Scan(
	ctx context.Context,
	connections []model.Connection,
	footpaths *FootpathGraph,
	distributions map[int]*model.Distribution,
	q Query,
) ([]Journey, error) {

	q = q.withDefaults()
	if footpaths == nil {
		footpaths = NewFootpathGraph()
	}

	s := &sweep{
		query:         q,
		footpaths:     footpaths,
		distributions: distributions,
		frontier:      map[int]*pointerFrontier{},
		firstRideable: map[string]*model.Connection{},
		tripConns:     map[string][]*model.Connection{},
	}
	s.srcLat, s.srcLon, s.dstLat, s.dstLon = endpointCoords(connections, q.Source, q.Destination)

	return s.run(ctx, connections)
}

type sweep struct {
	query         Query
	footpaths     *FootpathGraph
	distributions map[int]*model.Distribution

	// Pointers found so far, per stop.
	frontier map[int]*pointerFrontier

	// For each trip known to be rideable, the connection through
	// which the trip was first found useful. Every pointer onto
	// the trip rides through this connection, so it is the exit
	// of the trip segment the pointer describes.
	firstRideable map[string]*model.Connection

	// Connections seen per trip. The scan runs backwards through
	// the timetable, and each new connection is prepended, so the
	// list stays in schedule order. The reconstruction depends on
	// that when it looks for alternative exits.
	tripConns map[string][]*model.Connection

	sourceSeen int

	srcLat, srcLon float64
	dstLat, dstLon float64
}

func (s *sweep) run(ctx context.Context, connections []model.Connection) ([]Journey, error) {
	q := s.query
	slack := minutesCeil(q.TimePerConnection)

	// The destination itself accepts arrivals up to the deadline.
	s.addPointer(q.Destination, JourneyPointer{Deadline: q.TargetArrival})

	// Stops within walking distance of the destination accept
	// arrivals up to the deadline minus the walk.
	for _, e := range s.footpaths.Into(q.Destination) {
		walk := minutesCeil(e.Minutes)
		s.addPointer(e.Stop, JourneyPointer{
			Deadline: q.TargetArrival.Add(-walk),
			Footpath: &model.Footpath{DepStop: e.Stop, ArrStop: q.Destination, WalkTime: walk},
		})
	}

	for i := range connections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := &connections[i]

		conns := s.tripConns[c.TripID]
		conns = append(conns, nil)
		copy(conns[1:], conns)
		conns[0] = c
		s.tripConns[c.TripID] = conns

		// A connection is rideable if its trip already is, or if
		// its arrival stop has a pointer that tolerates the
		// scheduled arrival.
		exit, rideable := s.firstRideable[c.TripID]
		if !rideable {
			if head, ok := s.headDeadline(c.ArrStop); ok && !head.Before(c.ArrTime) {
				s.firstRideable[c.TripID] = c
				exit = c
				rideable = true
			}
		}
		if !rideable {
			continue
		}

		// Being at the departure stop early enough lets you
		// ride c (and onwards through exit).
		s.addPointer(c.DepStop, JourneyPointer{
			Deadline: c.DepTime.Add(-slack),
			Enter:    c,
			Exit:     exit,
		})
		if c.DepStop == q.Source {
			if journeys, done, err := s.sourceFound(ctx); err != nil {
				return nil, err
			} else if done {
				return journeys, nil
			}
		}

		// Stops within walking distance of the departure stop
		// can also make the connection.
		for _, e := range s.footpaths.Into(c.DepStop) {
			walk := minutesCeil(e.Minutes + q.TimePerConnection)
			s.addPointer(e.Stop, JourneyPointer{
				Deadline: c.DepTime.Add(-walk),
				Enter:    c,
				Exit:     exit,
				Footpath: &model.Footpath{DepStop: e.Stop, ArrStop: c.DepStop, WalkTime: walk},
			})
			if e.Stop == q.Source {
				if journeys, done, err := s.sourceFound(ctx); err != nil {
					return nil, err
				} else if done {
					return journeys, nil
				}
			}
		}
	}

	return s.reconstruct(ctx)
}

// Registers another pointer reaching the source and, once the source
// has been reached often enough, attempts an early reconstruction.
// done reports that enough journeys exist to stop the sweep.
func (s *sweep) sourceFound(ctx context.Context) (journeys []Journey, done bool, err error) {
	s.sourceSeen++
	if s.sourceSeen < s.query.MinTimesToFindSource {
		return nil, false, nil
	}

	journeys, err = s.reconstruct(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(journeys) >= s.query.JourneysToFind {
		return journeys, true, nil
	}
	return nil, false, nil
}

func (s *sweep) addPointer(stop int, p JourneyPointer) {
	f := s.frontier[stop]
	if f == nil {
		f = &pointerFrontier{}
		s.frontier[stop] = f
	}
	f.append(p)
	if len(f.data) > s.query.JourneysPerStop {
		f.removeEarliest()
	}
}

// Deadline of the most forgiving pointer at the stop, if any.
func (s *sweep) headDeadline(stop int) (time.Time, bool) {
	f := s.frontier[stop]
	if f == nil {
		return time.Time{}, false
	}
	p, ok := f.head()
	return p.Deadline, ok
}

// Coordinates of the source and destination stops, pulled from the
// connection endpoint metadata. Zero when no connection touches the
// stop.
func endpointCoords(connections []model.Connection, source, destination int) (srcLat, srcLon, dstLat, dstLon float64) {
	srcFound, dstFound := false, false
	for i := range connections {
		c := &connections[i]
		if !srcFound {
			if c.DepStop == source {
				srcLat, srcLon = c.DepLat, c.DepLon
				srcFound = true
			} else if c.ArrStop == source {
				srcLat, srcLon = c.ArrLat, c.ArrLon
				srcFound = true
			}
		}
		if !dstFound {
			if c.ArrStop == destination {
				dstLat, dstLon = c.ArrLat, c.ArrLon
				dstFound = true
			} else if c.DepStop == destination {
				dstLat, dstLon = c.DepLat, c.DepLon
				dstFound = true
			}
		}
		if srcFound && dstFound {
			break
		}
	}
	return srcLat, srcLon, dstLat, dstLon
}
