package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var flagForce bool

var generateCmd = &cobra.Command{
	Use:   "generate [files...]",
	Short: "Generate invoices from spec files",
	Long: "Runs the pipeline over the named spec files, or every *.yaml in the\n" +
		"invoices directory when none are given. Unchanged files are skipped\n" +
		"unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, store, err := newGenerator(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var paths []string
		for _, arg := range args {
			if filepath.Dir(arg) == "." {
				arg = filepath.Join(cfg.InvoicesDir, arg)
			}
			paths = append(paths, arg)
		}

		result, err := gen.GenerateBatch(cmd.Context(), paths, flagForce)
		if err != nil {
			return err
		}

		for _, outcome := range result.Generated {
			fmt.Printf("  %-40s %s  %s %s\n",
				outcome.Filename,
				outcome.Invoice.Resolved.InvoiceNumber,
				outcome.Invoice.Financials.Currency,
				outcome.Invoice.Financials.FinalTotal.StringFixed(2))
		}
		fmt.Printf("generated %d, skipped %d, failed %d\n",
			len(result.Generated), len(result.Skipped), len(result.Failed))

		if len(result.Failed) > 0 {
			for _, f := range result.Failed {
				fmt.Printf("  FAILED %s: %v\n", f.Filename, f.Err)
			}
			return fmt.Errorf("%d file(s) failed", len(result.Failed))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&flagForce, "force", false, "regenerate even when content is unchanged")
	rootCmd.AddCommand(generateCmd)
}
