package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"skedge.dev/csa"
)

var planCmd = &cobra.Command{
	Use:   "plan <dataset> <source> <destination>",
	Short: "Plans itineraries arriving by a deadline",
	Args:  cobra.ExactArgs(3),
	RunE:  runPlan,
}

var (
	arriveBy      string
	slackMinutes  float64
	journeys      int
	perStop       int
	minSourceHits int
	maxSegments   int
	minChance     float64
	asGeoJSON     bool
)

func init() {
	planCmd.Flags().StringVarP(&arriveBy, "arrive-by", "a", "", "Latest acceptable arrival time (RFC3339)")
	planCmd.Flags().Float64VarP(&slackMinutes, "slack", "s", 1, "Transfer slack in minutes")
	planCmd.Flags().IntVarP(&journeys, "journeys", "n", csa.DefaultJourneysToFind, "Number of journeys to find")
	planCmd.Flags().IntVarP(&perStop, "per-stop", "p", csa.DefaultJourneysPerStop, "Journey pointers kept per stop")
	planCmd.Flags().IntVarP(&minSourceHits, "min-source-hits", "m", csa.DefaultMinTimesToFindSource, "Source sightings before early reconstruction")
	planCmd.Flags().IntVarP(&maxSegments, "max-segments", "x", csa.DefaultMaxSegments, "Maximum segments per journey")
	planCmd.Flags().Float64VarP(&minChance, "min-chance", "c", 0.5, "Minimum success probability")
	planCmd.Flags().BoolVarP(&asGeoJSON, "geojson", "g", false, "Print journeys as GeoJSON")
	planCmd.MarkFlagRequired("arrive-by")
}

func runPlan(cmd *cobra.Command, args []string) error {
	dataset := args[0]

	source, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid source stop: %w", err)
	}
	destination, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid destination stop: %w", err)
	}
	targetArrival, err := time.Parse(time.RFC3339, arriveBy)
	if err != nil {
		return fmt.Errorf("invalid arrive-by time: %w", err)
	}

	s, err := openStorage()
	if err != nil {
		return err
	}

	manager := csa.NewManager(s)
	planner, err := manager.LoadPlanner(dataset)
	if err != nil {
		return err
	}

	results, err := planner.Plan(context.Background(), csa.Query{
		Source:               source,
		Destination:          destination,
		TargetArrival:        targetArrival,
		TimePerConnection:    slackMinutes,
		JourneysToFind:       journeys,
		JourneysPerStop:      perStop,
		MinTimesToFindSource: minSourceHits,
		MaxSegments:          maxSegments,
		MinChanceOfSuccess:   minChance,
	})
	if err != nil {
		return err
	}

	if asGeoJSON {
		for _, j := range results {
			buf, err := j.GeoJSON().MarshalJSON()
			if err != nil {
				return fmt.Errorf("marshaling journey: %w", err)
			}
			fmt.Println(string(buf))
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No journeys found")
		return nil
	}

	for i, j := range results {
		fmt.Printf("Itinerary %d: %d minutes, %.1f%% chance of success\n",
			i, j.Duration(), 100*j.SuccessProbability())
		fmt.Printf("  %s\n\n", j)
	}

	fmt.Println("Change times:")
	for i, j := range results {
		fmt.Printf("Itinerary %d:\n", i)
		for _, change := range j.Changes() {
			fmt.Printf("  %s: %dmin\n", change.Segment, change.MaxDelay)
		}
		fmt.Println()
	}

	return nil
}
