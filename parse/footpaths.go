package parse

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"skedge.dev/csa/storage"
)

type FootpathCSV struct {
	SrcID       int     `csv:"src_id"`
	DstID       int     `csv:"dst_id"`
	WalkMinutes float64 `csv:"walk_minutes"`
}

// ParseFootpaths writes every walking edge to the writer. Edges
// referencing unknown stops are rejected, as are self-loops and
// negative walk times.
func ParseFootpaths(writer storage.TimetableWriter, data io.Reader, stops map[int]bool) error {
	i := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(row *FootpathCSV) error {
		i += 1
		if row.SrcID == row.DstID {
			return errors.Errorf("self-loop at stop %d (row %d)", row.SrcID, i)
		}
		if !stops[row.SrcID] {
			return errors.Errorf("unknown stop %d (row %d)", row.SrcID, i)
		}
		if !stops[row.DstID] {
			return errors.Errorf("unknown stop %d (row %d)", row.DstID, i)
		}
		if row.WalkMinutes < 0 {
			return errors.Errorf("negative walk time (row %d)", i)
		}

		err := writer.WriteFootpath(storage.Walk{
			DepStop: row.SrcID,
			ArrStop: row.DstID,
			Minutes: row.WalkMinutes,
		})
		if err != nil {
			return errors.Wrapf(err, "writing footpath (row %d)", i)
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling footpaths csv")
	}

	return nil
}
