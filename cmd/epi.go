package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sahel-analytics/epicast/internal/epi"
	"github.com/sahel-analytics/epicast/internal/model"
)

var epiCmd = &cobra.Command{
	Use:   "epi",
	Short: "Parse and aggregate the case line list",
	Long:  "Reads the configured line list, reports dropped rows, and shows the per-period case aggregation footprint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := model.ParseGranularity(cfg.Extract.Granularity)
		if err != nil {
			return err
		}
		data, err := loadLineList(cmd.Context(), g)
		if err != nil {
			return err
		}

		fmt.Printf("rows:              %d\n", data.report.Total)
		fmt.Printf("kept:              %d\n", data.report.Kept)
		fmt.Printf("bad date:          %d\n", data.report.BadDate)
		fmt.Printf("missing district:  %d\n", data.report.MissingDistrict)

		if start, end, ok := epi.DateSpan(data.records); ok {
			fmt.Printf("date span:         %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
		districts := epi.AffectedDistricts(data.records)
		fmt.Printf("districts:         %d\n", len(districts))
		fmt.Printf("case cells:        %d\n", len(data.cases.Counts))
		for _, d := range districts {
			fmt.Printf("  %s\n", d)
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(epiCmd) }
