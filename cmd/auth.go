package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/services"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage and verify Planet API credentials.

The API key is read from a plain text file (default:
<data>/planetscope/PlanetScope_API_key.txt, configurable via api.key_file)
and sent as the basic-auth username with an empty password.

Available subcommands:
  verify - Check the key against the data and orders APIs`,
}

// authVerifyCmd represents the auth verify command
var authVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify API credentials",
	Long: `Verify the configured API key against both the data API and the
orders API before running any fetch.

Examples:
  planetfetch auth verify
  planetfetch auth verify --verbose`,
	Args: cobra.NoArgs,
	RunE: runAuthVerify,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authVerifyCmd)
}

func runAuthVerify(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configFile := services.GetConfigFilePath(); configFile != "" {
		fmt.Printf("Config file: %s\n", configFile)
	}

	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	keyFile := config.ResolveKeyFile()
	creds, err := services.LoadAPIKey(keyFile)
	if err != nil {
		return fmt.Errorf("failed to load API key: %w", err)
	}
	fmt.Printf("Key file: %s\n", keyFile)

	httpClient := services.NewHTTPClient(
		time.Duration(config.API.RequestTimeoutSeconds)*time.Second,
		config.Retry,
		logger,
	)

	if err := services.VerifyAuth(httpClient, creds, config.API.DataURL, config.API.OrdersURL, logger); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	fmt.Println("✓ Data API accepted the key")
	fmt.Println("✓ Orders API accepted the key")
	return nil
}
