package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/pipeline"
	"github.com/coastalrc/planetfetch/internal/services"
)

var (
	fetchStart      string
	fetchEnd        string
	fetchCloud      float64
	fetchSequential bool
	noProgress      bool
)

const dateLayout = "2006-01-02"

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [site...]",
	Short: "Order and download imagery for one or more sites",
	Long: `Order and download PlanetScope imagery for the given sites.

For each site the command:
  1. Searches the catalog for scenes inside the site polygon, date range
     and cloud ceiling, excluding test sensors, scenes without download
     permission, and scenes already on disk
  2. Submits a clipped order (large searches become multiple chunks,
     long date ranges become multiple windows)
  3. Polls the order until it completes
  4. Downloads the delivered assets into the site's image directory

Sites are named by their polygon files under the site info directory
(see 'planetfetch sites'). With no site arguments, every known site is
fetched.

A site with no matching scenes is skipped, not failed, and per-site
failures never abort the other sites. The command exits non-zero only
when credentials are rejected or the configuration is invalid.

Examples:
  # One site, first half of 2023
  planetfetch fetch waikiki --start 2023-01-01 --end 2023-06-30

  # All known sites, stricter cloud ceiling
  planetfetch fetch --start 2023-01-01 --end 2023-12-31 --cloud 0.05

  # Run sites one after another instead of concurrently
  planetfetch fetch waikiki lanikai --start 2023-01-01 --end 2023-06-30 --sequential`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "start date, YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "end date, YYYY-MM-DD, inclusive (required)")
	fetchCmd.Flags().Float64Var(&fetchCloud, "cloud", -1, "cloud cover ceiling 0..1 (default from config)")
	fetchCmd.Flags().BoolVar(&fetchSequential, "sequential", false, "fetch sites one at a time")
	fetchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress indicators")
	_ = fetchCmd.MarkFlagRequired("start")
	_ = fetchCmd.MarkFlagRequired("end")
}

func runFetch(cmd *cobra.Command, args []string) error {
	// Flag overrides take effect through the config layer so validation
	// covers them too
	if fetchSequential {
		services.SetConfigValue("fetch.concurrent", false)
	}
	if fetchCloud >= 0 {
		services.SetConfigValue("search.cloud_ceiling", fetchCloud)
	}

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	startDate, err := time.Parse(dateLayout, fetchStart)
	if err != nil {
		return fmt.Errorf("invalid --start date %q (want YYYY-MM-DD): %w", fetchStart, err)
	}
	endDate, err := time.Parse(dateLayout, fetchEnd)
	if err != nil {
		return fmt.Errorf("invalid --end date %q (want YYYY-MM-DD): %w", fetchEnd, err)
	}

	// Create logger
	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	if configFile := services.GetConfigFilePath(); configFile != "" {
		logger.Debug("Loaded configuration", "file", configFile)
	}

	// Load credentials and verify them before doing any site work
	creds, err := services.LoadAPIKey(config.ResolveKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load API key: %w", err)
	}

	httpClient := services.NewHTTPClient(
		time.Duration(config.API.RequestTimeoutSeconds)*time.Second,
		config.Retry,
		logger,
	)

	fmt.Println("Verifying credentials...")
	if err := services.VerifyAuth(httpClient, creds, config.API.DataURL, config.API.OrdersURL, logger); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	fmt.Println("✓ Credentials accepted by data and orders APIs")

	// Resolve sites and their polygons
	sites := args
	if len(sites) == 0 {
		sites, err = listKnownSites(config)
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			return fmt.Errorf("no sites found under %s; add one with 'planetfetch sites add'", filepath.Join(config.DataDir, "siteinfo"))
		}
	}

	queries := make([]models.SiteQuery, 0, len(sites))
	for _, site := range sites {
		path := filepath.Join(config.SiteInfoDir(site), models.PolygonFileName(site))
		ring, err := models.LoadSitePolygon(path)
		if err != nil {
			return fmt.Errorf("failed to load polygon for site %s: %w", site, err)
		}
		queries = append(queries, models.SiteQuery{
			Site:         site,
			Polygon:      ring,
			StartDate:    startDate,
			EndDate:      endDate,
			CloudCeiling: config.Search.CloudCeiling,
		})
	}

	catalog := services.NewCatalogClient(config.API, config.Search, creds, httpClient, logger, config.SiteImageDir)
	orders := services.NewOrdersClient(config.API.OrdersURL, creds, httpClient, logger)
	poller := services.NewPoller(config.Poll, creds, httpClient, logger)
	downloader := services.NewDownloader(config.Download, httpClient, logger)

	runner := pipeline.NewRunner(config, catalog, orders, poller, downloader, logger, !noProgress)

	fmt.Printf("Fetching %d site(s), %s to %s\n\n", len(queries), fetchStart, fetchEnd)
	reports := runner.RunSites(queries)

	printReports(reports)

	for _, report := range reports {
		if lib.IsFatal(report.Err) {
			return fmt.Errorf("authentication failed during run: %w", report.Err)
		}
	}
	return nil
}

// listKnownSites returns the names of all site directories that contain a
// polygon file
func listKnownSites(config *models.ProjectConfig) ([]string, error) {
	infoRoot := filepath.Join(config.DataDir, "siteinfo")
	entries, err := os.ReadDir(infoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list site info directory: %w", err)
	}

	var sites []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		site := entry.Name()
		polygonPath := filepath.Join(infoRoot, site, models.PolygonFileName(site))
		if _, err := os.Stat(polygonPath); err == nil {
			sites = append(sites, site)
		}
	}
	return sites, nil
}

func printReports(reports []pipeline.SiteReport) {
	fmt.Println()
	for _, report := range reports {
		switch {
		case report.Failed():
			fmt.Printf("✗ %-20s failed: %v\n", report.Site, report.Err)
		case report.Skipped:
			fmt.Printf("  %-20s no data in range\n", report.Site)
		default:
			fmt.Printf("✓ %-20s %d order(s), %d file(s) in %s\n",
				report.Site, report.Orders, len(report.Files), report.Duration.Round(time.Second))
		}
	}
}
