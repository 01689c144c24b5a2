package csa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"skedge.dev/csa/model"
)

// The frontier ordering is load bearing for the whole sweep, so it
// gets poked directly.

func deadlines(f *pointerFrontier) []time.Time {
	ds := []time.Time{}
	for _, p := range f.data {
		ds = append(ds, p.Deadline)
	}
	return ds
}

func TestFrontierAppendKeepsDescendingOrder(t *testing.T) {
	t0 := time.Date(2021, 5, 28, 12, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

	f := &pointerFrontier{}
	f.append(JourneyPointer{Deadline: at(10)})
	f.append(JourneyPointer{Deadline: at(20)})
	f.append(JourneyPointer{Deadline: at(15)})
	f.append(JourneyPointer{Deadline: at(5)})

	assert.Equal(t, []time.Time{at(20), at(15), at(10), at(5)}, deadlines(f))

	head, ok := f.head()
	assert.True(t, ok)
	assert.Equal(t, at(20), head.Deadline)
}

func TestFrontierAppendTiesInsertBefore(t *testing.T) {
	t0 := time.Date(2021, 5, 28, 12, 0, 0, 0, time.UTC)

	older := &model.Connection{TripID: "older"}
	newer := &model.Connection{TripID: "newer"}

	f := &pointerFrontier{}
	f.append(JourneyPointer{Deadline: t0, Enter: older})
	f.append(JourneyPointer{Deadline: t0, Enter: newer})

	assert.Equal(t, newer, f.data[0].Enter)
	assert.Equal(t, older, f.data[1].Enter)
}

func TestFrontierRemoveEarliest(t *testing.T) {
	t0 := time.Date(2021, 5, 28, 12, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

	f := &pointerFrontier{}
	f.append(JourneyPointer{Deadline: at(10)})
	f.append(JourneyPointer{Deadline: at(20)})
	f.append(JourneyPointer{Deadline: at(15)})

	f.removeEarliest()
	assert.Equal(t, []time.Time{at(20), at(15)}, deadlines(f))

	f.removeEarliest()
	f.removeEarliest()
	assert.Empty(t, f.data)

	_, ok := f.head()
	assert.False(t, ok)
}
