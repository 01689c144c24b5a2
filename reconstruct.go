package csa

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"skedge.dev/csa/model"
)

// Returned when a journey pointer references a trip the sweep never
// recorded connections for. Indicates corrupt sweep state.
var ErrMissingTripConnections = errors.New("missing trip connections")

// Walks the pointer frontier depth-first and assembles concrete
// journeys, including alternative exits within boarded trips. The
// result is filtered by success probability and sorted.
func (s *sweep) reconstruct(ctx context.Context) ([]Journey, error) {
	q := s.query

	r := &reconstructor{
		ctx:               ctx,
		destination:       q.Destination,
		frontier:          s.frontier,
		tripConns:         s.tripConns,
		minChance:         q.MinChanceOfSuccess,
		minConnectionTime: minutesCeil(q.TimePerConnection),
		maxSegments:       q.MaxSegments,
	}

	start := newJourney(
		q.Source, q.Destination,
		s.srcLat, s.srcLon, s.dstLat, s.dstLon,
		q.TargetArrival, s.distributions,
	)

	journeys, err := r.follow(start, nil)
	if err != nil {
		return nil, err
	}

	sortJourneys(journeys)
	return journeys, nil
}

type reconstructor struct {
	ctx               context.Context
	destination       int
	frontier          map[int]*pointerFrontier
	tripConns         map[string][]*model.Connection
	minChance         float64
	minConnectionTime time.Duration
	maxSegments       int
}

// Expands the partial journey by every admissible pointer at its
// current stop. ridden holds the trips already boarded; a journey
// never re-boards a trip it got off of.
func (r *reconstructor) follow(j Journey, ridden []string) ([]Journey, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	if j.SuccessProbability() < r.minChance {
		return nil, nil
	}
	if j.Len() > r.maxSegments {
		return nil, nil
	}
	if j.ReachedDestination() {
		done, err := j.completed()
		if err != nil {
			return nil, err
		}
		if done.SuccessProbability() < r.minChance {
			return nil, nil
		}
		return []Journey{done}, nil
	}

	f := r.frontier[j.CurrentArrivalStop()]
	if f == nil {
		return nil, nil
	}

	arrival, hasArrival := j.CurrentArrivalTime()

	found := []Journey{}
	for _, p := range f.data {
		// Too late to follow this pointer.
		if hasArrival && arrival.After(p.Deadline) {
			continue
		}
		// Never get back onto a trip you got off of.
		if p.Enter != nil && containsTrip(ridden, p.Enter.TripID) {
			continue
		}

		next := j
		if p.Footpath != nil {
			var err error
			next, err = next.Extend(*p.Footpath)
			if err != nil {
				return nil, err
			}
			if p.Footpath.ArrStop == r.destination {
				sub, err := r.follow(next, ridden)
				if err != nil {
					return nil, err
				}
				found = append(found, sub...)
				continue
			}
		}

		if p.Enter == nil {
			continue
		}

		riddenHere := appendTrip(ridden, p.Enter.TripID)

		conns := r.tripConns[p.Enter.TripID]
		if conns == nil {
			return nil, errors.Wrapf(ErrMissingTripConnections, "trip %q", p.Enter.TripID)
		}

		// Consider getting off early, at the arrival stop of
		// any connection strictly between the boarding
		// connection and the planned exit connection.
		foundEntry, foundExit := false, false
		for _, c := range conns {
			if c == p.Exit {
				foundExit = true
			}
			if foundEntry && !foundExit {
				sub, err := r.alternativeExits(next, riddenHere, p, c)
				if err != nil {
					return nil, err
				}
				found = append(found, sub...)
			}
			if c == p.Enter {
				foundEntry = true
			}
		}

		cont, err := next.Extend(model.TripSegment{Enter: p.Enter, Exit: p.Exit})
		if err != nil {
			return nil, err
		}
		sub, err := r.follow(cont, riddenHere)
		if err != nil {
			return nil, err
		}
		found = append(found, sub...)
	}

	return found, nil
}

// Branches the journey by alighting at c instead of riding through
// to p.Exit, then following any admissible pointer at c's arrival
// stop.
func (r *reconstructor) alternativeExits(j Journey, ridden []string, p JourneyPointer, c *model.Connection) ([]Journey, error) {
	alts := r.frontier[c.ArrStop]
	if alts == nil || len(alts.data) < 2 {
		return nil, nil
	}

	found := []Journey{}
	for _, alt := range alts.data {
		// Getting off and straight back onto the same trip is
		// pointless. Pointers without a connection were made
		// during initialisation and walk to the destination.
		if alt.Enter != nil && alt.Enter.TripID == c.TripID {
			continue
		}
		// Nor is boarding any trip the journey already rode.
		if alt.Enter != nil && containsTrip(ridden, alt.Enter.TripID) {
			continue
		}

		// There has to be time to make the alternative:
		// transfer slack, plus the walk if there is one.
		if alt.Enter != nil {
			wait := r.minConnectionTime
			if alt.Footpath != nil {
				wait += alt.Footpath.WalkTime
			}
			if alt.Enter.DepTime.Before(c.ArrTime.Add(wait)) {
				continue
			}
		}

		branch, err := j.Extend(model.TripSegment{Enter: p.Enter, Exit: c})
		if err != nil {
			return nil, err
		}

		branchRidden := ridden
		if alt.Footpath != nil {
			branch, err = branch.Extend(*alt.Footpath)
			if err != nil {
				return nil, err
			}
		}
		if alt.Enter != nil {
			seg := model.TripSegment{Enter: alt.Enter, Exit: alt.Exit}
			branch, err = branch.Extend(seg)
			if err != nil {
				return nil, err
			}
			branchRidden = appendTrip(ridden, seg.TripID())
		}

		sub, err := r.follow(branch, branchRidden)
		if err != nil {
			return nil, err
		}
		found = append(found, sub...)
	}

	return found, nil
}

// Latest departure first, then fewest segments. Stable, so equal
// journeys keep their discovery order.
func sortJourneys(journeys []Journey) {
	sort.SliceStable(journeys, func(i, k int) bool {
		di, dk := journeys[i].DepartureTime(), journeys[k].DepartureTime()
		if !di.Equal(dk) {
			return dk.Before(di)
		}
		return journeys[i].Len() < journeys[k].Len()
	})
}

func containsTrip(trips []string, id string) bool {
	for _, t := range trips {
		if t == id {
			return true
		}
	}
	return false
}

// Copies on append so sibling branches never share backing arrays.
func appendTrip(trips []string, id string) []string {
	out := make([]string, len(trips)+1)
	copy(out, trips)
	out[len(trips)] = id
	return out
}
