package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quorum-research/survey-cli/internal/cost"
	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/scheduler"
)

var (
	runFile   string
	runOut    string
	runCSV    string
	runFresh  bool
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a survey job from a YAML definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		job, err := model.LoadJobFile(runFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		schedCfg := schedulerConfig(func(e scheduler.Event) {
			zap.L().Info("interview done",
				zap.String("interview", e.Interview),
				zap.String("model", e.Model),
				zap.Int("iteration", e.Iteration),
				zap.Int("errors", e.Errors),
				zap.Int("completed", e.Completed),
				zap.Int("total", e.Total),
			)
		})
		schedCfg.Fresh = runFresh

		sched := scheduler.New(schedCfg, env.cache, invokers(runDryRun))
		res, err := sched.Run(ctx, job)
		if err != nil {
			return eris.Wrap(err, "run job")
		}

		estimator := cost.NewEstimator(cfg.Pricing)
		actuals := estimator.Actuals(res)
		zap.L().Info("run complete",
			zap.Int("records", len(res.Records)),
			zap.Int("exceptions", len(res.Exceptions())),
			zap.Float64("cost_usd", actuals.TotalUSD),
		)

		if runOut != "" {
			raw, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return eris.Wrap(err, "encode results")
			}
			if err := os.WriteFile(runOut, raw, 0o644); err != nil {
				return eris.Wrap(err, "write results")
			}
		}
		if runCSV != "" {
			f, err := os.Create(runCSV)
			if err != nil {
				return eris.Wrap(err, "create csv")
			}
			defer f.Close()
			if err := res.WriteCSV(f); err != nil {
				return err
			}
		}
		if exceptions := res.Exceptions(); len(exceptions) > 0 {
			cmd.PrintErrln(res.Report())
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "survey.yaml", "job definition file")
	runCmd.Flags().StringVar(&runOut, "out", "", "write results JSON to this path")
	runCmd.Flags().StringVar(&runCSV, "csv", "", "write flattened results CSV to this path")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "bypass cache reads (still writes)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use the scripted provider instead of live models")
	rootCmd.AddCommand(runCmd)
}
