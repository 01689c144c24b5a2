package csa

import (
	"math"
	"time"

	"skedge.dev/csa/storage"
)

// A walking edge incident to some stop: the stop at the far end and
// the raw walk duration in fractional minutes.
type WalkEdge struct {
	Stop    int
	Minutes float64
}

// Sparse walking adjacency between stops. Into(i) lists the stops
// from which stop i can be reached on foot. Self-loops are never
// stored.
type FootpathGraph struct {
	into map[int][]WalkEdge
}

func NewFootpathGraph() *FootpathGraph {
	return &FootpathGraph{into: map[int][]WalkEdge{}}
}

// Records a walking edge from dep to arr. Self-loops are dropped.
func (g *FootpathGraph) Add(dep, arr int, minutes float64) {
	if dep == arr {
		return
	}
	g.into[arr] = append(g.into[arr], WalkEdge{Stop: dep, Minutes: minutes})
}

// The walking edges arriving at the given stop.
func (g *FootpathGraph) Into(stop int) []WalkEdge {
	return g.into[stop]
}

// Builds the adjacency from stored walking edges.
func FootpathGraphFromWalks(walks []storage.Walk) *FootpathGraph {
	g := NewFootpathGraph()
	for _, w := range walks {
		g.Add(w.DepStop, w.ArrStop, w.Minutes)
	}
	return g
}

// Fractional minutes ceiled to a whole-minute duration.
func minutesCeil(minutes float64) time.Duration {
	return time.Duration(math.Ceil(minutes)) * time.Minute
}
