/*
Copyright © 2026 Coastal Research Collaborative

Planetfetch is a CLI tool for ordering and downloading PlanetScope
satellite imagery for monitored coastal sites.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planetfetch",
	Short: "Planetfetch - PlanetScope imagery retrieval CLI",
	Long: `Planetfetch orders and downloads PlanetScope satellite imagery for
monitored sites.

For each site the CLI searches the Planet catalog for scenes matching the
site polygon, date range and cloud ceiling, submits an order clipped to the
polygon, waits for the order to complete, and downloads the delivered
assets into a per-site directory. Scenes already on disk are never ordered
or downloaded twice.

Example:
  planetfetch fetch waikiki --start 2023-01-01 --end 2023-06-30
  planetfetch sites list
  planetfetch auth verify`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./planetfetch.yaml, ~/.config/planetfetch/planetfetch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Add version template
	rootCmd.SetVersionTemplate("Planetfetch version {{.Version}}\n")
}
