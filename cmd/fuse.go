package main

import (
	"github.com/spf13/cobra"
)

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse extracted features into the final dataset",
	Long:  "Joins the checkpointed environmental extraction with static, socio-economic, and case data, then writes the configured outputs. Requires a finished extract run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), false)
	},
}

func init() { rootCmd.AddCommand(fuseCmd) }
