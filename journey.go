package csa

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"skedge.dev/csa/model"
)

// Returned when a journey would end up with two adjacent
// footpaths. This indicates a bug in the reconstruction, not bad
// input.
var ErrMalformedJourney = errors.New("two footpaths in a row in a journey")

// A boarded trip segment paired with the delay, in minutes, it can
// suffer before the rest of the journey falls apart.
type Change struct {
	Segment  model.TripSegment
	MaxDelay int
}

// A journey composed of footpaths and trip segments from a source
// stop towards a destination stop.
//
// Journeys are values. Extend returns a new journey with one more
// segment and leaves the receiver untouched; the reconstruction
// relies on this when it branches.
type Journey struct {
	segments      []model.Segment
	departureStop int
	arrivalStop   int

	srcLat, srcLon float64
	dstLat, dstLon float64

	targetArrival time.Time
	distributions map[int]*model.Distribution

	probability float64

	// Arrival time at the current last stop, when a segment
	// extension pinned it down. Otherwise derived from the
	// segments on demand.
	arrivalKnown  bool
	arrivalAtLast time.Time
}

func newJourney(
	source int,
	destination int,
	srcLat, srcLon, dstLat, dstLon float64,
	targetArrival time.Time,
	distributions map[int]*model.Distribution,
) Journey {
	return Journey{
		departureStop: source,
		arrivalStop:   destination,
		srcLat:        srcLat,
		srcLon:        srcLon,
		dstLat:        dstLat,
		dstLon:        dstLon,
		targetArrival: targetArrival,
		distributions: distributions,
		probability:   1.0,
	}
}

func (j Journey) Len() int {
	return len(j.segments)
}

// The segments of the journey, in travel order. Callers must not
// modify the returned slice.
func (j Journey) Segments() []model.Segment {
	return j.segments
}

func (j Journey) DepartureStop() int { return j.departureStop }
func (j Journey) ArrivalStop() int   { return j.arrivalStop }

// Coordinates of the source and destination stops, as carried
// through from the connection metadata.
func (j Journey) Coords() (srcLat, srcLon, dstLat, dstLon float64) {
	return j.srcLat, j.srcLon, j.dstLat, j.dstLon
}

// The stop where the journey currently ends. Equals ArrivalStop()
// only once the journey is complete.
func (j Journey) CurrentArrivalStop() int {
	if len(j.segments) == 0 {
		return j.departureStop
	}
	return j.segments[len(j.segments)-1].To()
}

func (j Journey) ReachedDestination() bool {
	return j.CurrentArrivalStop() == j.arrivalStop
}

func (j Journey) TargetArrivalTime() time.Time {
	return j.targetArrival
}

// The time at which the traveller needs to leave the starting
// point. Zero for an empty journey.
func (j Journey) DepartureTime() time.Time {
	if len(j.segments) == 0 {
		return time.Time{}
	}

	if fp, ok := j.segments[0].(model.Footpath); ok {
		if len(j.segments) == 1 {
			// A walk-only journey leaves as late as the
			// deadline allows.
			return j.targetArrival.Add(-fp.WalkTime)
		}
		next := j.segments[1].(model.TripSegment)
		return next.DepartureTime().Add(-fp.WalkTime)
	}

	return j.segments[0].(model.TripSegment).DepartureTime()
}

// The time at which the traveller arrives at the current last
// stop. ok is false when the journey has no pinned arrival yet (an
// empty journey, or a lone walk that doesn't reach the destination).
func (j Journey) CurrentArrivalTime() (t time.Time, ok bool) {
	if j.arrivalKnown {
		return j.arrivalAtLast, true
	}

	if len(j.segments) == 0 {
		return time.Time{}, false
	}

	last := j.segments[len(j.segments)-1]
	if fp, isWalk := last.(model.Footpath); isWalk {
		if len(j.segments) == 1 {
			if j.ReachedDestination() {
				return j.targetArrival, true
			}
			return time.Time{}, false
		}
		prev := j.segments[len(j.segments)-2].(model.TripSegment)
		return prev.ArrivalTime().Add(fp.WalkTime), true
	}

	return last.(model.TripSegment).ArrivalTime(), true
}

// The journey duration in minutes, rounded up.
func (j Journey) Duration() int {
	arr, ok := j.CurrentArrivalTime()
	if !ok {
		return 0
	}
	d := arr.Sub(j.DepartureTime())
	minutes := int(d / time.Minute)
	if d%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// Minutes spent walking over the whole journey.
func (j Journey) WalkTime() int {
	minutes := 0
	for _, seg := range j.segments {
		if fp, ok := seg.(model.Footpath); ok {
			minutes += int(fp.WalkTime / time.Minute)
		}
	}
	return minutes
}

// The probability that every change in the journey succeeds, given
// the per-trip delay distributions. Maintained incrementally by
// Extend. For journeys returned by Scan it equals the product of CDF
// values over Changes(); a journey that ends on a trip segment and
// was only built with Extend lacks that last segment's factor.
func (j Journey) SuccessProbability() float64 {
	return j.probability
}

// Every trip segment of the journey paired with the largest delay,
// in minutes, that still lets the traveller make the next segment
// (or the target arrival, for the final leg).
func (j Journey) Changes() []Change {
	changes := []Change{}
	n := len(j.segments)
	for i, seg := range j.segments {
		ts, ok := seg.(model.TripSegment)
		if !ok {
			continue
		}

		var maxDelay int
		if i == n-1 {
			maxDelay = wholeMinutes(j.targetArrival.Sub(ts.ArrivalTime()))
		} else if fp, walkTail := j.segments[i+1].(model.Footpath); walkTail && i == n-2 {
			arrPlusWalk := ts.ArrivalTime().Add(fp.WalkTime)
			maxDelay = wholeMinutes(j.targetArrival.Sub(arrPlusWalk))
		} else {
			nextStopArr := ts.ArrivalTime()
			next := i + 1
			if fp, walk := j.segments[i+1].(model.Footpath); walk {
				nextStopArr = nextStopArr.Add(fp.WalkTime)
				next++
			}
			nextDep := j.segments[next].(model.TripSegment).DepartureTime()
			maxDelay = wholeMinutes(nextDep.Sub(nextStopArr))
		}

		changes = append(changes, Change{Segment: ts, MaxDelay: maxDelay})
	}
	return changes
}

// Extend returns a copy of the journey with one appended segment,
// with the success probability updated for the change the new
// segment introduces.
func (j Journey) Extend(seg model.Segment) (Journey, error) {
	if len(j.segments) > 0 {
		_, newIsWalk := seg.(model.Footpath)
		_, lastIsWalk := j.segments[len(j.segments)-1].(model.Footpath)
		if newIsWalk && lastIsWalk {
			return Journey{}, errors.Wrapf(ErrMalformedJourney, "appending %s", seg)
		}
	}

	segments := make([]model.Segment, len(j.segments)+1)
	copy(segments, j.segments)
	segments[len(j.segments)] = seg

	next := j
	next.segments = segments
	next.arrivalKnown = false

	switch s := seg.(type) {
	case model.Footpath:
		if s.ArrStop != j.arrivalStop {
			// Mid-journey walk. The arrival at the far end
			// stays derived from the surrounding trips.
			break
		}

		arr, ok := j.CurrentArrivalTime()
		if !ok {
			// Nothing rode before this walk, so the walk can
			// start as late as the deadline allows.
			next.arrivalKnown = true
			next.arrivalAtLast = j.targetArrival
			break
		}

		// Walking tail into the destination: the last trip's
		// delay must leave room for the walk.
		prev := j.segments[len(j.segments)-1].(model.TripSegment)
		maxDelay := wholeMinutes(j.targetArrival.Sub(arr.Add(s.WalkTime)))
		p, err := j.changeProbability(prev.DistributionID(), maxDelay)
		if err != nil {
			return Journey{}, err
		}
		next.probability = j.probability * p
		next.arrivalKnown = true
		next.arrivalAtLast = prev.ArrivalTime().Add(s.WalkTime)

	case model.TripSegment:
		if _, ok := j.CurrentArrivalTime(); ok {
			var prev model.TripSegment
			var arrAtBoarding time.Time
			if ts, isTrip := j.segments[len(j.segments)-1].(model.TripSegment); isTrip {
				prev = ts
				arrAtBoarding = ts.ArrivalTime()
			} else {
				fp := j.segments[len(j.segments)-1].(model.Footpath)
				prev = j.segments[len(j.segments)-2].(model.TripSegment)
				arrAtBoarding = prev.ArrivalTime().Add(fp.WalkTime)
			}

			maxDelay := wholeMinutes(s.DepartureTime().Sub(arrAtBoarding))
			p, err := j.changeProbability(prev.DistributionID(), maxDelay)
			if err != nil {
				return Journey{}, err
			}
			next.probability = j.probability * p
		}

		next.arrivalKnown = true
		next.arrivalAtLast = s.ArrivalTime()
	}

	return next, nil
}

// completed applies the final trip's delay-versus-deadline change.
// The reconstruction calls it once when it emits a journey ending on
// a trip segment; journeys ending on a walk had this change applied
// when the walk was appended.
func (j Journey) completed() (Journey, error) {
	if len(j.segments) == 0 {
		return j, nil
	}
	ts, ok := j.segments[len(j.segments)-1].(model.TripSegment)
	if !ok {
		return j, nil
	}

	maxDelay := wholeMinutes(j.targetArrival.Sub(ts.ArrivalTime()))
	p, err := j.changeProbability(ts.DistributionID(), maxDelay)
	if err != nil {
		return Journey{}, err
	}
	j.probability *= p
	return j, nil
}

func (j Journey) changeProbability(distributionID int, maxDelay int) (float64, error) {
	d, found := j.distributions[distributionID]
	if !found {
		// No distribution on record means no delay model; the
		// change is assumed to succeed.
		return 1.0, nil
	}
	p, err := d.CDF(maxDelay)
	if err != nil {
		return 0, fmt.Errorf("probability of change with %d min slack: %w", maxDelay, err)
	}
	return p, nil
}

func (j Journey) String() string {
	var b strings.Builder
	arr := "unknown"
	if t, ok := j.CurrentArrivalTime(); ok {
		arr = t.Format("15:04")
	}
	fmt.Fprintf(&b, "journey of %d segments, departs=%s, arrives=%s",
		len(j.segments), j.DepartureTime().Format("15:04"), arr)
	for _, seg := range j.segments {
		fmt.Fprintf(&b, "\n    %s", seg)
	}
	return b.String()
}

// Floor of d in minutes.
func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}
