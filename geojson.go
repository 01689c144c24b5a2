package csa

import (
	"time"

	geojson "github.com/paulmach/go.geojson"

	"skedge.dev/csa/model"
)

// GeoJSON renders the journey as a feature collection: one LineString
// feature per trip segment, drawn between the connection endpoints,
// plus a summary feature for the journey itself. Footpaths carry no
// coordinates and contribute properties only.
func (j Journey) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	summary := geojson.NewLineStringFeature([][]float64{
		{j.srcLon, j.srcLat},
		{j.dstLon, j.dstLat},
	})
	summary.SetProperty("kind", "journey")
	summary.SetProperty("segments", len(j.segments))
	summary.SetProperty("duration_min", j.Duration())
	summary.SetProperty("walk_time_min", j.WalkTime())
	summary.SetProperty("success_probability", j.SuccessProbability())
	summary.SetProperty("departure_time", j.DepartureTime().Format(time.RFC3339))
	if arr, ok := j.CurrentArrivalTime(); ok {
		summary.SetProperty("arrival_time", arr.Format(time.RFC3339))
	}
	fc.AddFeature(summary)

	for _, seg := range j.segments {
		ts, ok := seg.(model.TripSegment)
		if !ok {
			continue
		}

		f := geojson.NewLineStringFeature([][]float64{
			{ts.Enter.DepLon, ts.Enter.DepLat},
			{ts.Exit.ArrLon, ts.Exit.ArrLat},
		})
		f.SetProperty("kind", "ride")
		f.SetProperty("trip_id", ts.TripID())
		f.SetProperty("route_desc", ts.RouteDesc())
		f.SetProperty("from_stop", ts.From())
		f.SetProperty("to_stop", ts.To())
		f.SetProperty("departure_time", ts.DepartureTime().Format(time.RFC3339))
		f.SetProperty("arrival_time", ts.ArrivalTime().Format(time.RFC3339))
		fc.AddFeature(f)
	}

	return fc
}
