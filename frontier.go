package csa

import (
	"time"

	"skedge.dev/csa/model"
)

// The back-pointer stored at a stop during the sweep. A traveller at
// the stop no later than Deadline can follow the pointer (walk via
// Footpath if set, then ride Enter through Exit) and stay on track
// for the destination.
//
// A pointer with neither connection set is the pure-walk terminal
// pointer created during initialisation.
type JourneyPointer struct {
	Deadline time.Time
	Enter    *model.Connection
	Exit     *model.Connection
	Footpath *model.Footpath
}

// Per-stop list of journey pointers, sorted descending by deadline.
// The head is the most forgiving pointer at the stop.
type pointerFrontier struct {
	data []JourneyPointer
}

// Inserts p keeping the descending order. On equal deadlines the new
// pointer lands before the existing ones.
func (f *pointerFrontier) append(p JourneyPointer) {
	i := len(f.data)
	for k, e := range f.data {
		if !e.Deadline.After(p.Deadline) {
			i = k
			break
		}
	}
	f.data = append(f.data, JourneyPointer{})
	copy(f.data[i+1:], f.data[i:])
	f.data[i] = p
}

// Drops the pointer with the smallest deadline.
func (f *pointerFrontier) removeEarliest() {
	f.data = f.data[:len(f.data)-1]
}

func (f *pointerFrontier) head() (JourneyPointer, bool) {
	if len(f.data) == 0 {
		return JourneyPointer{}, false
	}
	return f.data[0], true
}
