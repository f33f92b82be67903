package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"AlphaLab/internal/di"
	"AlphaLab/internal/services/report"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rank every alpha by cross-sectional IC on one date",
	RunE:  runScan,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Daily IC series, quantile layers and extremes for one alpha",
	RunE:  runAnalyze,
}

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find historical feature vectors closest to a security on a date",
	RunE:  runSimilar,
}

var (
	flagDate      string
	flagAlpha     string
	flagDays      int
	flagQuantiles int
	flagTop       int
	flagXLSX      string
	flagSecurity  string
	flagMatches   int
)

func init() {
	rootCmd.AddCommand(scanCmd, analyzeCmd, similarCmd)

	for _, c := range []*cobra.Command{scanCmd, analyzeCmd, similarCmd} {
		c.Flags().StringVar(&flagDate, "date", "", "trade date YYYY-MM-DD (default: latest)")
	}

	analyzeCmd.Flags().StringVar(&flagAlpha, "alpha", "", "alpha column, e.g. alpha_001")
	analyzeCmd.Flags().IntVar(&flagDays, "days", 0, "trading days in the IC series (default: evaluator.lookback_days)")
	analyzeCmd.Flags().IntVar(&flagQuantiles, "quantiles", 0, "quantile layers (default: evaluator.quantiles)")
	analyzeCmd.Flags().IntVar(&flagTop, "top", 0, "securities listed at each extreme (default: evaluator.top_n)")
	analyzeCmd.Flags().StringVar(&flagXLSX, "xlsx", "", "also write the analysis workbook to this path")
	_ = analyzeCmd.MarkFlagRequired("alpha")

	similarCmd.Flags().StringVar(&flagSecurity, "security", "", "security code")
	similarCmd.Flags().IntVar(&flagMatches, "n", 0, "number of matches (default: similarity.top_n)")
	_ = similarCmd.MarkFlagRequired("security")
}

// parseFlagDate returns the zero time for an empty flag, which selects the latest session.
func parseFlagDate() (time.Time, error) {
	if flagDate == "" {
		return time.Time{}, nil
	}
	d, err := util.MustDate(flagDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runScan(cmd *cobra.Command, _ []string) error {
	date, err := parseFlagDate()
	if err != nil {
		return err
	}
	return withCLI(func(cli *di.CLI) error {
		scan, err := cli.Lab.ScanCrossSection(cmd.Context(), date)
		if err != nil {
			return err
		}
		return printJSON(scan)
	})
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	date, err := parseFlagDate()
	if err != nil {
		return err
	}
	params := usecase.AnalyzeParams{
		Alpha:     flagAlpha,
		Date:      date,
		Days:      flagDays,
		Quantiles: flagQuantiles,
		Top:       flagTop,
	}
	return withCLI(func(cli *di.CLI) error {
		a, err := cli.Lab.Analyze(cmd.Context(), params)
		if err != nil {
			return err
		}
		if flagXLSX != "" {
			f, err := os.Create(flagXLSX)
			if err != nil {
				return fmt.Errorf("create workbook: %w", err)
			}
			if err := report.WriteAnalysisXLSX(f, a); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close workbook: %w", err)
			}
		}
		return printJSON(a)
	})
}

func runSimilar(cmd *cobra.Command, _ []string) error {
	date, err := parseFlagDate()
	if err != nil {
		return err
	}
	return withCLI(func(cli *di.CLI) error {
		if date.IsZero() {
			if date, err = cli.Lab.LatestTradeDate(cmd.Context()); err != nil {
				return err
			}
		}
		res, err := cli.Search.FindSimilar(cmd.Context(), flagSecurity, date, flagMatches)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}
