package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/services"
)

// sitesCmd represents the sites command group
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage site polygons",
	Long: `Manage the polygon files that define each monitored site.

Each site is a geojson feature collection with a single polygon feature,
stored at <data>/siteinfo/<site>/<site>_polygon.geojson. The polygon is an
ordered ring of lon,lat vertices; the closing vertex is added automatically.

Available subcommands:
  add  - Create a site polygon from lon,lat vertices
  list - List known sites`,
}

// sitesAddCmd represents the sites add command
var sitesAddCmd = &cobra.Command{
	Use:   "add <site> <lon,lat> <lon,lat> <lon,lat> [lon,lat...]",
	Short: "Create a site polygon",
	Long: `Create the polygon file for a new site from lon,lat vertices.

At least three distinct vertices are required. Vertices are given in
longitude,latitude order (x,y) and the ring is closed automatically. Use
"--" before the first vertex so negative longitudes are not read as flags.

Example:
  planetfetch sites add waikiki -- -157.84,21.27 -157.83,21.27 -157.83,21.28 -157.84,21.28`,
	Args: cobra.MinimumNArgs(4),
	RunE: runSitesAdd,
}

// sitesListCmd represents the sites list command
var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sites",
	Long: `List every site that has a polygon file, with its vertex count.

Example:
  planetfetch sites list`,
	Args: cobra.NoArgs,
	RunE: runSitesList,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
	sitesCmd.AddCommand(sitesAddCmd)
	sitesCmd.AddCommand(sitesListCmd)
}

func runSitesAdd(cmd *cobra.Command, args []string) error {
	site := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ring := make(models.Ring, 0, len(args))
	for _, arg := range args[1:] {
		point, err := parsePoint(arg)
		if err != nil {
			return err
		}
		ring = append(ring, point)
	}

	path, err := models.WriteSitePolygon(config.SiteInfoDir(site), site, ring)
	if err != nil {
		return fmt.Errorf("failed to write polygon for site %s: %w", site, err)
	}

	fmt.Printf("✓ Created site %s\n", site)
	fmt.Printf("  Polygon: %s\n", path)
	fmt.Printf("  Vertices: %d\n", len(ring))
	return nil
}

func runSitesList(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sites, err := listKnownSites(config)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Println("No sites found. Add one with 'planetfetch sites add'")
		return nil
	}

	for _, site := range sites {
		path := filepath.Join(config.SiteInfoDir(site), models.PolygonFileName(site))
		ring, err := models.LoadSitePolygon(path)
		if err != nil {
			fmt.Printf("✗ %-20s invalid polygon: %v\n", site, err)
			continue
		}
		fmt.Printf("  %-20s %d vertices\n", site, len(ring))
	}
	return nil
}

// parsePoint parses a "lon,lat" argument
func parsePoint(arg string) (models.Point, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		return models.Point{}, fmt.Errorf("invalid vertex %q (want lon,lat)", arg)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("invalid longitude in %q: %w", arg, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("invalid latitude in %q: %w", arg, err)
	}
	return models.Point{lon, lat}, nil
}
