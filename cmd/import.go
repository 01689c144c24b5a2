package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skedge.dev/csa/parse"
	"skedge.dev/csa/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <name> <bundle.zip>",
	Short: "Imports a timetable bundle into the database",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

var timetablesCmd = &cobra.Command{
	Use:   "timetables",
	Short: "Lists imported timetable datasets",
	Args:  cobra.NoArgs,
	RunE:  runTimetables,
}

func openStorage() (*storage.SQLiteStorage, error) {
	return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbDir})
}

func runImport(cmd *cobra.Command, args []string) error {
	name, bundle := args[0], args[1]

	buf, err := os.ReadFile(bundle)
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}

	s, err := openStorage()
	if err != nil {
		return err
	}

	writer, err := s.GetWriter(name)
	if err != nil {
		return err
	}

	metadata, err := parse.ParseTimetable(writer, buf)
	if err != nil {
		return fmt.Errorf("parsing bundle: %w", err)
	}

	metadata.Name = name
	metadata.ImportedAt = time.Now()
	err = s.WriteTimetableMetadata(metadata)
	if err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	fmt.Printf("Imported %s: %d stops, %d connections\n", name, metadata.Stops, metadata.Connections)
	return nil
}

func runTimetables(cmd *cobra.Command, args []string) error {
	s, err := openStorage()
	if err != nil {
		return err
	}

	metadata, err := s.ListTimetables(storage.ListTimetablesFilter{})
	if err != nil {
		return err
	}

	for _, m := range metadata {
		fmt.Printf("%s: %d stops, %d connections, imported %s\n",
			m.Name, m.Stops, m.Connections, m.ImportedAt.Format(time.RFC3339))
	}
	return nil
}
