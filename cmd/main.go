package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "csa",
	Short:        "Robust transit itinerary planner",
	Long:         "Plans public-transit itineraries that survive delays",
	SilenceUsage: true,
}

var dbDir string

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbDir, "db-dir", "", ".", "Directory holding the timetable database")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(timetablesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
