package parse

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"skedge.dev/csa/model"
	"skedge.dev/csa/storage"
)

type ConnectionCSV struct {
	TripID         string  `csv:"trip_id"`
	RouteDesc      string  `csv:"route_desc"`
	SrcID          int     `csv:"src_id"`
	DstID          int     `csv:"dst_id"`
	DepartureTime  string  `csv:"departure_time"`
	ArrivalTime    string  `csv:"arrival_time"`
	DistributionID int     `csv:"distribution_id"`
	DepLat         float64 `csv:"departure_stop_lat"`
	DepLon         float64 `csv:"departure_stop_lon"`
	ArrLat         float64 `csv:"arrival_stop_lat"`
	ArrLon         float64 `csv:"arrival_stop_lon"`
}

func parseConnectionTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// ParseConnections writes every connection row to the writer and
// returns the set of stop indices seen plus the row count.
func ParseConnections(writer storage.TimetableWriter, data io.Reader) (map[int]bool, int, error) {
	stops := map[int]bool{}

	err := writer.BeginConnections()
	if err != nil {
		return nil, 0, errors.Wrap(err, "beginning connections")
	}

	i := 0
	err = gocsv.UnmarshalToCallbackWithError(data, func(row *ConnectionCSV) error {
		i += 1
		if row.TripID == "" {
			return errors.Errorf("missing trip_id (row %d)", i)
		}
		if row.SrcID < 0 || row.DstID < 0 {
			return errors.Errorf("negative stop index (row %d)", i)
		}

		depTime, err := parseConnectionTime(row.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", i)
		}
		arrTime, err := parseConnectionTime(row.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", i)
		}
		if depTime.After(arrTime) {
			return errors.Errorf("departure after arrival (row %d)", i)
		}

		routeDesc := row.RouteDesc
		if routeDesc == "" {
			routeDesc = "unknown"
		}

		stops[row.SrcID] = true
		stops[row.DstID] = true

		err = writer.WriteConnection(model.Connection{
			TripID:         row.TripID,
			RouteDesc:      routeDesc,
			DepStop:        row.SrcID,
			ArrStop:        row.DstID,
			DepTime:        depTime,
			ArrTime:        arrTime,
			DistributionID: row.DistributionID,
			DepLat:         row.DepLat,
			DepLon:         row.DepLon,
			ArrLat:         row.ArrLat,
			ArrLon:         row.ArrLon,
		})
		if err != nil {
			return errors.Wrapf(err, "writing connection (row %d)", i)
		}

		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "unmarshaling connections csv")
	}

	err = writer.EndConnections()
	if err != nil {
		return nil, 0, errors.Wrap(err, "ending connections")
	}

	return stops, i, nil
}
