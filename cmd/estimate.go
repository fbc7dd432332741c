package main

import (
	"github.com/spf13/cobra"

	"github.com/quorum-research/survey-cli/internal/cost"
	"github.com/quorum-research/survey-cli/internal/model"
)

var estimateFile string

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate token and dollar cost of a job before running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := model.LoadJobFile(estimateFile)
		if err != nil {
			return err
		}
		if _, err := job.Normalize(schedulerConfig(nil).DefaultModel); err != nil {
			return err
		}

		est, err := cost.NewEstimator(cfg.Pricing).EstimateJob(job)
		if err != nil {
			return err
		}
		cmd.Println(est.Format())
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateFile, "file", "survey.yaml", "job definition file")
	rootCmd.AddCommand(estimateCmd)
}
