package model

import (
	"fmt"
	"time"
)

// Holds the value types shared between storage, ingestion and the
// router core.

// A single scheduled non-stop hop of a vehicle. Stops are dense
// non-negative indices; coordinates are optional metadata carried
// through to journeys.
type Connection struct {
	TripID         string
	RouteDesc      string
	DepStop        int
	ArrStop        int
	DepTime        time.Time
	ArrTime        time.Time
	DistributionID int
	DepLat         float64
	DepLon         float64
	ArrLat         float64
	ArrLon         float64
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s connection on trip %q from %d to %d at (%s -> %s)",
		c.RouteDesc, c.TripID, c.DepStop, c.ArrStop,
		c.DepTime.Format("15:04"), c.ArrTime.Format("15:04"))
}

// A walking edge between two stops. WalkTime is always a whole
// number of minutes.
type Footpath struct {
	DepStop  int
	ArrStop  int
	WalkTime time.Duration
}

func (f Footpath) From() int { return f.DepStop }
func (f Footpath) To() int   { return f.ArrStop }

func (f Footpath) String() string {
	return fmt.Sprintf("walk from %d to %d, %d min", f.DepStop, f.ArrStop, int(f.WalkTime/time.Minute))
}

// A contiguous sub-sequence of one trip that a traveller rides:
// board at Enter's departure stop, alight at Exit's arrival stop.
// Enter and Exit share a trip id (Enter == Exit for a single hop).
type TripSegment struct {
	Enter *Connection
	Exit  *Connection
}

func (t TripSegment) TripID() string           { return t.Enter.TripID }
func (t TripSegment) RouteDesc() string        { return t.Enter.RouteDesc }
func (t TripSegment) DistributionID() int      { return t.Enter.DistributionID }
func (t TripSegment) DepartureTime() time.Time { return t.Enter.DepTime }
func (t TripSegment) ArrivalTime() time.Time   { return t.Exit.ArrTime }

func (t TripSegment) From() int { return t.Enter.DepStop }
func (t TripSegment) To() int   { return t.Exit.ArrStop }

func (t TripSegment) String() string {
	return fmt.Sprintf("trip %q from %d to %d, departs %s, arrives %s",
		t.TripID(), t.From(), t.To(),
		t.DepartureTime().Format("15:04"), t.ArrivalTime().Format("15:04"))
}

// One leg of a journey. Either a Footpath or a TripSegment.
type Segment interface {
	From() int
	To() int
	String() string
}
