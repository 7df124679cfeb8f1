package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sahel-analytics/epicast/internal/ledger"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show extraction run progress from the work-unit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck
		if err := led.Migrate(ctx); err != nil {
			return err
		}

		var run *ledger.Run
		var ok bool
		if statusRunID != "" {
			run, ok, err = led.Run(ctx, statusRunID)
		} else {
			run, ok, err = led.LatestRun(ctx)
		}
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no runs recorded")
			return nil
		}

		units, err := led.Units(ctx, run.ID)
		if err != nil {
			return err
		}

		done := 0
		for _, u := range units {
			if u.Status == ledger.StatusDone {
				done++
			}
		}

		fmt.Printf("run:         %s\n", run.ID)
		fmt.Printf("granularity: %s\n", run.Granularity)
		fmt.Printf("range:       %s to %s\n", run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"))
		fmt.Printf("status:      %s\n", run.Status)
		fmt.Printf("districts:   %d/%d done\n", done, len(units))
		for _, u := range units {
			fmt.Printf("  %-24s %s\n", u.District, u.Status)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "run ID (default latest)")
	rootCmd.AddCommand(statusCmd)
}
