package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"AlphaLab/internal/di"
	"AlphaLab/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "alphalab",
	Short: "Factor research service: IC scans, alpha analysis and pattern search",
	Long: `alphalab serves factor evaluation over ClickHouse panel data.

Without a subcommand it runs the HTTP API, the job workers and the daily scan.

Examples:
  alphalab --config config/config.yaml
  alphalab scan --date 2024-03-29
  alphalab analyze --alpha alpha_012 --days 120 --xlsx alpha_012.xlsx
  alphalab similar --security 600000.SH --date 2024-03-29`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, job workers and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run()
}

// withCLI runs fn against the storage-backed use cases.
func withCLI(fn func(cli *di.CLI) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cli, cleanup, err := di.InitializeCLI(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	return fn(cli)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
