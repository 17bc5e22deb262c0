package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aqiwatch",
		Short:         "Malaysian air quality, asthma risk and travel planning",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(checkCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(importCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(travelCmd())
	root.AddCommand(locationsCmd())
	root.AddCommand(advisoriesCmd())
	root.AddCommand(trendsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func checkCmd() *cobra.Command {
	var (
		o          checkOptions
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show current air quality and asthma advice for a location",
		Example: `  aqiwatch check --state Selangor --city Klang
  aqiwatch check --lat 3.14 --lon 101.69
  aqiwatch check --zip 50450`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.hasLat = cmd.Flags().Changed("lat")
			o.hasLon = cmd.Flags().Changed("lon")
			return runCheck(cmd.Context(), o, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&o.state, "state", "", "state name")
	cmd.Flags().StringVar(&o.city, "city", "", "city name")
	cmd.Flags().Float64Var(&o.lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&o.lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&o.zip, "zip", "", "postal code")
	cmd.Flags().StringVar(&o.country, "country", "", "ISO country code for --zip (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func collectCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect readings for the watched cities once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import predicted AQI values from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0])
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		date   string
		states []string
		cities []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export predicted AQI values as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), date, states, cities, output)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "only this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&states, "state", nil, "only these states")
	cmd.Flags().StringSliceVar(&cities, "city", nil, "only these cities")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func travelCmd() *cobra.Command {
	var (
		q          travelOptions
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "travel",
		Short: "Rank cities by predicted AQI for a travel date",
		Example: `  aqiwatch travel --date 2025-04-01 --state Selangor,Johor --severity Moderate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTravel(cmd.Context(), q, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&q.date, "date", "", "travel date (default: latest predicted date)")
	cmd.Flags().StringSliceVar(&q.states, "state", nil, "states to consider (default: all)")
	cmd.Flags().StringSliceVar(&q.cities, "city", nil, "cities to consider (default: all)")
	cmd.Flags().StringVar(&q.severity, "severity", "Mild", "asthma severity: Mild, Moderate or Severe")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func locationsCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List supported states and cities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocations(state)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "list the cities of one state")
	return cmd
}

func advisoriesCmd() *cobra.Command {
	var (
		refresh    bool
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "advisories",
		Short: "Show air quality advisories from news feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdvisories(cmd.Context(), refresh, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the feeds before listing")
	cmd.Flags().IntVar(&limit, "limit", 20, "max advisories to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func trendsCmd() *cobra.Command {
	var (
		state      string
		city       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show how AQI moved over the trend window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrends(cmd.Context(), state, city, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "state of a single city")
	cmd.Flags().StringVar(&city, "city", "", "single city")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
