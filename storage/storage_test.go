package storage_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skedge.dev/csa/model"
	"skedge.dev/csa/storage"
	"skedge.dev/csa/testutil"
)

func writeBaseline(t *testing.T, s storage.Storage) {
	writer, err := s.GetWriter("test")
	require.NoError(t, err)

	require.NoError(t, writer.BeginConnections())
	for _, c := range testutil.BaselineConnections() {
		require.NoError(t, writer.WriteConnection(c))
	}
	require.NoError(t, writer.EndConnections())

	for _, w := range testutil.BaselineWalks() {
		require.NoError(t, writer.WriteFootpath(w))
	}

	d, err := model.NewDistribution(0, []int{0, 1, 2}, []float64{0.6, 0.3, 0.1})
	require.NoError(t, err)
	require.NoError(t, writer.WriteDistribution(d))

	require.NoError(t, writer.Close())
}

func testStorageConnectionsOrderedAndFiltered(t *testing.T, backend string) {
	s := testutil.BuildStorage(t, backend)
	writeBaseline(t, s)

	reader, err := s.GetReader("test")
	require.NoError(t, err)

	// Everything in, sorted descending by departure.
	connections, err := reader.Connections(testutil.Minute(20))
	require.NoError(t, err)
	require.Len(t, connections, 6)
	for i := 1; i < len(connections); i++ {
		assert.False(t, connections[i-1].DepTime.Before(connections[i].DepTime),
			"connections out of order at %d", i)
	}

	// The deadline cuts connections arriving too late.
	connections, err = reader.Connections(testutil.Minute(14))
	require.NoError(t, err)
	require.Len(t, connections, 3)
	for _, c := range connections {
		assert.False(t, c.ArrTime.After(testutil.Minute(14)))
	}

	// Field round trip.
	connections, err = reader.Connections(testutil.Minute(20))
	require.NoError(t, err)
	first := connections[0]
	assert.Equal(t, "||", first.TripID)
	assert.Equal(t, "bus", first.RouteDesc)
	assert.Equal(t, 1, first.DepStop)
	assert.Equal(t, 3, first.ArrStop)
	assert.True(t, first.DepTime.Equal(testutil.Minute(15)))
	assert.True(t, first.ArrTime.Equal(testutil.Minute(18)))
	assert.Equal(t, 0, first.DistributionID)
	assert.Equal(t, testutil.StopLat(1), first.DepLat)
	assert.Equal(t, testutil.StopLon(3), first.ArrLon)
}

func testStorageFootpaths(t *testing.T, backend string) {
	s := testutil.BuildStorage(t, backend)
	writeBaseline(t, s)

	reader, err := s.GetReader("test")
	require.NoError(t, err)

	walks, err := reader.Footpaths()
	require.NoError(t, err)
	assert.ElementsMatch(t, testutil.BaselineWalks(), walks)
}

func testStorageFootpathSelfLoopRejected(t *testing.T, backend string) {
	s := testutil.BuildStorage(t, backend)

	writer, err := s.GetWriter("test")
	require.NoError(t, err)

	err = writer.WriteFootpath(storage.Walk{DepStop: 4, ArrStop: 4, Minutes: 1})
	assert.Error(t, err)
}

func testStorageDistributions(t *testing.T, backend string) {
	s := testutil.BuildStorage(t, backend)
	writeBaseline(t, s)

	reader, err := s.GetReader("test")
	require.NoError(t, err)

	distributions, err := reader.Distributions()
	require.NoError(t, err)
	require.Contains(t, distributions, 0)

	p, err := distributions[0].CDF(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p, 1e-9)
}

func testStorageMetadata(t *testing.T, backend string) {
	s := testutil.BuildStorage(t, backend)

	require.NoError(t, s.WriteTimetableMetadata(&storage.TimetableMetadata{
		Name:        "test",
		ImportedAt:  testutil.T0,
		Stops:       7,
		Connections: 6,
	}))

	metadata, err := s.ListTimetables(storage.ListTimetablesFilter{Name: "test"})
	require.NoError(t, err)
	require.Len(t, metadata, 1)
	assert.Equal(t, 7, metadata[0].Stops)
	assert.Equal(t, 6, metadata[0].Connections)

	metadata, err = s.ListTimetables(storage.ListTimetablesFilter{Name: "elsewhere"})
	require.NoError(t, err)
	assert.Empty(t, metadata)

	// Overwriting updates in place.
	require.NoError(t, s.WriteTimetableMetadata(&storage.TimetableMetadata{
		Name:        "test",
		ImportedAt:  testutil.Minute(1),
		Stops:       8,
		Connections: 6,
	}))
	metadata, err = s.ListTimetables(storage.ListTimetablesFilter{})
	require.NoError(t, err)
	require.Len(t, metadata, 1)
	assert.Equal(t, 8, metadata[0].Stops)
}

func testStorageUnknownDataset(t *testing.T, backend string) {
	if backend == "postgres" {
		// The postgres reader is lazy and only fails on query.
		t.Skip()
	}

	s := testutil.BuildStorage(t, backend)

	_, err := s.GetReader("nope")
	assert.Error(t, err)
}

func TestStorage(t *testing.T) {
	for _, test := range []struct {
		Name string
		Test func(t *testing.T, backend string)
	}{
		{"ConnectionsOrderedAndFiltered", testStorageConnectionsOrderedAndFiltered},
		{"Footpaths", testStorageFootpaths},
		{"FootpathSelfLoopRejected", testStorageFootpathSelfLoopRejected},
		{"Distributions", testStorageDistributions},
		{"Metadata", testStorageMetadata},
		{"UnknownDataset", testStorageUnknownDataset},
	} {
		t.Run(fmt.Sprintf("%s memory", test.Name), func(t *testing.T) {
			test.Test(t, "memory")
		})
		t.Run(fmt.Sprintf("%s SQLite", test.Name), func(t *testing.T) {
			test.Test(t, "sqlite")
		})
		// t.Run(fmt.Sprintf("%s Postgres", test.Name), func(t *testing.T) {
		//	test.Test(t, "postgres")
		// })
	}
}
