package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"skedge.dev/csa/storage"
)

// ParseTimetable reads a zipped timetable bundle into a storage
// writer and returns metadata about the dataset.
//
// The bundle holds connections.txt (required), footpaths.txt and
// distributions.txt (both optional).
func ParseTimetable(writer storage.TimetableWriter, buf []byte) (*storage.TimetableMetadata, error) {
	file := map[string]io.ReadCloser{
		"connections.txt":   nil,
		"footpaths.txt":     nil,
		"distributions.txt": nil,
	}

	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// data producers don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if _, found := file[fName]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}

		file[fName] = rc
	}

	if file["connections.txt"] == nil {
		return nil, fmt.Errorf("missing connections.txt")
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	stops, count, err := ParseConnections(writer, file["connections.txt"])
	if err != nil {
		return nil, fmt.Errorf("parsing connections.txt: %w", err)
	}

	if file["footpaths.txt"] != nil {
		err = ParseFootpaths(writer, file["footpaths.txt"], stops)
		if err != nil {
			return nil, fmt.Errorf("parsing footpaths.txt: %w", err)
		}
	}

	if file["distributions.txt"] != nil {
		err = ParseDistributions(writer, file["distributions.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing distributions.txt: %w", err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing timetable writer: %w", err)
	}

	return &storage.TimetableMetadata{
		Stops:       len(stops),
		Connections: count,
	}, nil
}
