package csa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skedge.dev/csa/model"
)

var testT0 = time.Date(2021, 5, 28, 12, 0, 0, 0, time.UTC)

func testMinute(m int) time.Time {
	return testT0.Add(time.Duration(m) * time.Minute)
}

func testDistributions(t *testing.T) map[int]*model.Distribution {
	unit, err := model.NewDistribution(0, []int{0}, []float64{1})
	require.NoError(t, err)
	skewed, err := model.NewDistribution(1, []int{0, 1, 2, 3}, []float64{0.5, 0.25, 0.125, 0.125})
	require.NoError(t, err)
	return map[int]*model.Distribution{0: unit, 1: skewed}
}

// Train trip "| " riding 5 -> 4 -> 1, and bus trip "||" riding
// 1 -> 3. Both with the skewed distribution so probabilities bite.
func testConnections() (c64, c41, c13 *model.Connection) {
	c64 = &model.Connection{TripID: "| ", RouteDesc: "train", DepStop: 5, ArrStop: 4,
		DepTime: testMinute(7), ArrTime: testMinute(12), DistributionID: 1}
	c41 = &model.Connection{TripID: "| ", RouteDesc: "train", DepStop: 4, ArrStop: 1,
		DepTime: testMinute(9), ArrTime: testMinute(13), DistributionID: 1}
	c13 = &model.Connection{TripID: "||", RouteDesc: "bus", DepStop: 1, ArrStop: 3,
		DepTime: testMinute(15), ArrTime: testMinute(18), DistributionID: 1}
	return c64, c41, c13
}

func TestJourneyEmpty(t *testing.T) {
	j := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), testDistributions(t))

	assert.Equal(t, 0, j.Len())
	assert.Equal(t, 5, j.CurrentArrivalStop())
	assert.False(t, j.ReachedDestination())
	assert.True(t, j.DepartureTime().IsZero())
	_, ok := j.CurrentArrivalTime()
	assert.False(t, ok)
	assert.Equal(t, 1.0, j.SuccessProbability())
	assert.Empty(t, j.Changes())

	// A query from a stop to itself is already complete.
	same := newJourney(3, 3, 0, 0, 0, 0, testMinute(20), nil)
	assert.True(t, same.ReachedDestination())
}

func TestJourneyExtendTripSegment(t *testing.T) {
	c64, c41, _ := testConnections()
	j := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), testDistributions(t))

	j2, err := j.Extend(model.TripSegment{Enter: c64, Exit: c41})
	require.NoError(t, err)

	assert.Equal(t, 1, j2.Len())
	assert.Equal(t, 1, j2.CurrentArrivalStop())
	assert.Equal(t, testMinute(7), j2.DepartureTime())
	arr, ok := j2.CurrentArrivalTime()
	assert.True(t, ok)
	assert.Equal(t, testMinute(13), arr)
	assert.Equal(t, 6, j2.Duration())
	// Boarding the first trip involves no change.
	assert.Equal(t, 1.0, j2.SuccessProbability())

	// The original is untouched.
	assert.Equal(t, 0, j.Len())
	assert.Equal(t, 1.0, j.SuccessProbability())
}

func TestJourneyBoardingProbability(t *testing.T) {
	c64, c41, c13 := testConnections()
	dists := testDistributions(t)
	j := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), dists)

	j, err := j.Extend(model.TripSegment{Enter: c64, Exit: c41})
	require.NoError(t, err)
	j, err = j.Extend(model.TripSegment{Enter: c13, Exit: c13})
	require.NoError(t, err)

	// Two minutes of slack between arriving at stop 1 (12:13) and
	// the bus leaving (12:15): cdf(2) of the train's distribution.
	assert.InDelta(t, 0.875, j.SuccessProbability(), 1e-9)

	assert.True(t, j.ReachedDestination())

	// Completion charges the last leg's own delay against the
	// deadline: two more minutes of slack (12:18 vs 12:20).
	done, err := j.completed()
	require.NoError(t, err)
	assert.InDelta(t, 0.765625, done.SuccessProbability(), 1e-9)

	// The final probability is exactly the product over changes.
	product := 1.0
	for _, change := range done.Changes() {
		p, err := dists[change.Segment.DistributionID()].CDF(change.MaxDelay)
		require.NoError(t, err)
		product *= p
	}
	assert.InDelta(t, product, done.SuccessProbability(), 1e-9)
}

func TestJourneyWalkTailProbability(t *testing.T) {
	c64, _, _ := testConnections()
	// Train 5 -> 4 arriving 12:12, then a two minute walk to the
	// destination, against a 12:15 deadline.
	j := newJourney(5, 6, 0, 0, 0, 0, testMinute(15), testDistributions(t))

	j, err := j.Extend(model.TripSegment{Enter: c64, Exit: c64})
	require.NoError(t, err)
	j, err = j.Extend(model.Footpath{DepStop: 4, ArrStop: 6, WalkTime: 2 * time.Minute})
	require.NoError(t, err)

	// One minute of slack once the walk is accounted for: cdf(1).
	assert.InDelta(t, 0.75, j.SuccessProbability(), 1e-9)

	arr, ok := j.CurrentArrivalTime()
	assert.True(t, ok)
	assert.Equal(t, testMinute(14), arr)
	assert.True(t, j.ReachedDestination())

	// Journeys ending on a walk are already fully charged.
	done, err := j.completed()
	require.NoError(t, err)
	assert.InDelta(t, j.SuccessProbability(), done.SuccessProbability(), 1e-9)

	changes := j.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, 1, changes[0].MaxDelay)

	assert.Equal(t, 2, j.WalkTime())
	assert.Equal(t, 7, j.Duration())
}

func TestJourneyMidWalkThenTrip(t *testing.T) {
	_, c41, c13 := testConnections()
	j := newJourney(4, 3, 0, 0, 0, 0, testMinute(20), testDistributions(t))

	// A journey starting with a walk has no arrival time until a
	// trip pins it down.
	j, err := j.Extend(model.Footpath{DepStop: 4, ArrStop: 1, WalkTime: 3 * time.Minute})
	require.NoError(t, err)
	_, ok := j.CurrentArrivalTime()
	assert.False(t, ok)

	j, err = j.Extend(model.TripSegment{Enter: c13, Exit: c13})
	require.NoError(t, err)

	// No prior trip, so the walk-then-ride start costs nothing.
	assert.Equal(t, 1.0, j.SuccessProbability())
	// Departure backs off the walk from the first ride.
	assert.Equal(t, testMinute(12), j.DepartureTime())

	// A walk between two trips shifts the boarding slack.
	j2 := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), testDistributions(t))
	j2, err = j2.Extend(model.TripSegment{Enter: c41, Exit: c41})
	require.NoError(t, err)
	j2, err = j2.Extend(model.Footpath{DepStop: 1, ArrStop: 0, WalkTime: 1 * time.Minute})
	require.NoError(t, err)
	arr, ok := j2.CurrentArrivalTime()
	assert.True(t, ok)
	assert.Equal(t, testMinute(14), arr)
}

func TestJourneyWalkOnly(t *testing.T) {
	j := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), nil)

	j, err := j.Extend(model.Footpath{DepStop: 5, ArrStop: 3, WalkTime: 4 * time.Minute})
	require.NoError(t, err)

	assert.True(t, j.ReachedDestination())
	assert.Equal(t, testMinute(16), j.DepartureTime())
	arr, ok := j.CurrentArrivalTime()
	assert.True(t, ok)
	assert.Equal(t, testMinute(20), arr)
	assert.Equal(t, 1.0, j.SuccessProbability())
	assert.Equal(t, 4, j.Duration())
	assert.Equal(t, 4, j.WalkTime())
}

func TestJourneyAdjacentFootpathsRejected(t *testing.T) {
	j := newJourney(5, 3, 0, 0, 0, 0, testMinute(20), nil)

	j, err := j.Extend(model.Footpath{DepStop: 5, ArrStop: 6, WalkTime: 2 * time.Minute})
	require.NoError(t, err)

	_, err = j.Extend(model.Footpath{DepStop: 6, ArrStop: 3, WalkTime: 2 * time.Minute})
	assert.ErrorIs(t, err, ErrMalformedJourney)
}

func TestJourneyCoords(t *testing.T) {
	j := newJourney(5, 3, 46.55, 6.65, 46.53, 6.63, testMinute(20), nil)
	srcLat, srcLon, dstLat, dstLon := j.Coords()
	assert.Equal(t, 46.55, srcLat)
	assert.Equal(t, 6.65, srcLon)
	assert.Equal(t, 46.53, dstLat)
	assert.Equal(t, 6.63, dstLon)
}
