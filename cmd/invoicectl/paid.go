package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-engine/pipeline"
	"github.com/warp/invoice-engine/registry"
)

var paidCmd = &cobra.Command{
	Use:   "paid [file] [date]",
	Short: "Record a payment receipt",
	Long: "Marks a generated invoice as paid on the given date (YYYY-MM-DD,\n" +
		"default today). With no arguments, lists unpaid invoices.",
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			reg := registry.Load(cfg.RegistryPath)
			unpaid := reg.Unpaid()
			if len(unpaid) == 0 {
				fmt.Println("no unpaid invoices")
				return nil
			}
			for _, name := range unpaid {
				entry, _ := reg.Entry(name)
				fmt.Printf("  %-40s %s\n", name, entry.CanonicalID)
			}
			return nil
		}

		receiptDate := time.Now().Format("2006-01-02")
		if len(args) == 2 {
			if _, err := time.Parse("2006-01-02", args[1]); err != nil {
				return fmt.Errorf("invalid receipt date %q: expected YYYY-MM-DD", args[1])
			}
			receiptDate = args[1]
		}

		if err := pipeline.MarkPaid(cfg.RegistryPath, args[0], receiptDate); err != nil {
			return err
		}
		fmt.Printf("marked %s paid on %s\n", args[0], receiptDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(paidCmd)
}
