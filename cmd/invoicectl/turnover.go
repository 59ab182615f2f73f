package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-engine/archive"
	"github.com/warp/invoice-engine/turnover"
)

var flagTurnoverDate string

var turnoverCmd = &cobra.Command{
	Use:   "turnover",
	Short: "Fiscal-year gross turnover report",
	Long: "Aggregates archived invoices into INR gross turnover for the fiscal\n" +
		"year (April 1 to March 31) containing --date, default today.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ref := time.Now()
		if flagTurnoverDate != "" {
			ref, err = time.Parse("2006-01-02", flagTurnoverDate)
			if err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", flagTurnoverDate)
			}
		}

		store, err := archive.New(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := turnover.ComputeReport(cmd.Context(), store, ref)
		if err != nil {
			return err
		}

		stats := report.Current
		fmt.Printf("%s (%s to %s)\n", stats.FiscalYear, stats.From, stats.To)
		for _, m := range stats.ByMonth {
			fmt.Printf("  %s/%s  INR %s\n", m.Period[:2], m.Period[2:], m.Total.StringFixed(2))
		}
		fmt.Printf("current FY turnover:   INR %s across %d invoice(s)\n", stats.Total.StringFixed(2), stats.InvoiceCount)
		fmt.Printf("preceding FY turnover: INR %s\n", report.Previous.Total.StringFixed(2))
		return nil
	},
}

func init() {
	turnoverCmd.Flags().StringVar(&flagTurnoverDate, "date", "", "any date inside the fiscal year (YYYY-MM-DD)")
	rootCmd.AddCommand(turnoverCmd)
}
