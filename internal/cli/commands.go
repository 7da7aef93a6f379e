package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RushiGong/ESPEI/adapters/api"
	"github.com/RushiGong/ESPEI/adapters/db/migrations"
	"github.com/RushiGong/ESPEI/adapters/excel"
	"github.com/RushiGong/ESPEI/adapters/report"
	"github.com/RushiGong/ESPEI/app"
	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/cockroachdb/apd/v3"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

type estimationFlags struct {
	burnIn int
	log    bool
	asJSON bool
}

func (f *estimationFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.burnIn, "burn-in", 0, "leading steps of every chain to discard (default from config)")
	cmd.Flags().BoolVar(&f.log, "log", false, "work with natural-log evidence (default from config)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full result as JSON")
}

// resolve lets explicit flags override the configured defaults
func (f *estimationFlags) resolve(cmd *cobra.Command, cfg evidenceDefaults) (int, bool) {
	burnIn, logMode := cfg.burnIn, cfg.log
	if cmd.Flags().Changed("burn-in") {
		burnIn = f.burnIn
	}
	if cmd.Flags().Changed("log") {
		logMode = f.log
	}
	return burnIn, logMode
}

type evidenceDefaults struct {
	burnIn int
	log    bool
}

func (e *env) defaults() evidenceDefaults {
	return evidenceDefaults{burnIn: e.cfg.Estimation.BurnIn, log: e.cfg.Estimation.Log}
}

func newEstimateCmd(opts *options) *cobra.Command {
	var (
		flags             estimationFlags
		name, trace, prob string
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the evidence of one model from its sampler output",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := e.service()
			if err != nil {
				return err
			}
			burnIn, logMode := flags.resolve(cmd, e.defaults())
			res, err := svc.EstimateModel(ctx, app.ModelInput{Name: name, TracePath: trace, LnProbPath: prob}, burnIn, evidence.UnitFor(logMode))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Evidence (%s) for %s: %s\n", res.Run.Evidence.Unit, name, res.Run.Evidence.Value.Text('g'))
			fmt.Fprintf(out, "Samples: %d  mean lnL: %g  median lnL: %g  min lnL: %g\n",
				res.Summary.Count, res.Summary.Mean, res.Summary.Median, res.Summary.Min)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "model", "model name recorded with the result")
	cmd.Flags().StringVar(&trace, "trace", "", "trace .npy file (chains x steps x params)")
	cmd.Flags().StringVar(&prob, "lnprob", "", "lnprob .npy file (chains x steps)")
	_ = cmd.MarkFlagRequired("trace")
	_ = cmd.MarkFlagRequired("lnprob")
	return cmd
}

func newCompareCmd(opts *options) *cobra.Command {
	var (
		flags                estimationFlags
		name1, trace1, prob1 string
		name2, trace2, prob2 string
		xlsxPath, reportPath string
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two models by their Bayes factor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := e.service()
			if err != nil {
				return err
			}
			burnIn, logMode := flags.resolve(cmd, e.defaults())
			res, err := svc.Compare(ctx,
				app.ModelInput{Name: name1, TracePath: trace1, LnProbPath: prob1},
				app.ModelInput{Name: name2, TracePath: trace2, LnProbPath: prob2},
				burnIn, logMode)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := excel.SaveComparisons(xlsxPath, []*evidence.ComparisonRecord{res.Record}); err != nil {
					return errors.Wrapf(errors.WithCode(errors.CodeInternalError, err), "failed to write %s", xlsxPath)
				}
				e.logger.Info("wrote spreadsheet %s", xlsxPath)
			}
			if reportPath != "" {
				if err := writeReport(reportPath, res.Record); err != nil {
					return err
				}
				e.logger.Info("wrote report %s", reportPath)
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Evidence for %s: %s\n", name1, res.Record.Run1.Evidence.Value.Text('g'))
			fmt.Fprintf(out, "Evidence for %s: %s\n", name2, res.Record.Run2.Evidence.Value.Text('g'))
			fmt.Fprintln(out, report.Summary(res.Record.Comparison))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name1, "name1", "model1", "name of the first model")
	cmd.Flags().StringVar(&trace1, "trace1", "", "trace .npy file of the first model")
	cmd.Flags().StringVar(&prob1, "lnprob1", "", "lnprob .npy file of the first model")
	cmd.Flags().StringVar(&name2, "name2", "model2", "name of the second model")
	cmd.Flags().StringVar(&trace2, "trace2", "", "trace .npy file of the second model")
	cmd.Flags().StringVar(&prob2, "lnprob2", "", "lnprob .npy file of the second model")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the comparison to this .xlsx file")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a Markdown (.md) or HTML (.html) report")
	for _, f := range []string{"trace1", "lnprob1", "trace2", "lnprob2"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newClassifyCmd(opts *options) *cobra.Command {
	var logMode bool
	cmd := &cobra.Command{
		Use:   "classify EVIDENCE1 EVIDENCE2",
		Short: "Grade the Bayes factor of two evidence values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer e.close()

			values := make([]*apd.Decimal, 2)
			for i, arg := range args {
				d, _, err := apd.NewFromString(arg)
				if err != nil {
					return errors.InvalidInput("evidence is not a decimal number").With("value", arg)
				}
				values[i] = d
			}

			svc, err := e.service()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log") {
				logMode = e.cfg.Estimation.Log
			}
			cmp, err := svc.ClassifyValues(values[0], values[1], logMode)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary(cmp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&logMode, "log", false, "arguments are natural-log evidence")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the evidence HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := e.service()
			if err != nil {
				return err
			}
			gin.SetMode(e.cfg.Server.GinMode)
			if e.db == nil {
				e.logger.Warn("no database configured, comparisons will not be stored")
			}
			return api.NewServer(svc, e.logger).Run(":" + e.cfg.Server.Port)
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply result store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer e.close()
			if e.db == nil {
				return errors.ConfigInvalid("DATABASE_URL is not set")
			}
			// setup already applied pending migrations
			fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, opts, false)
			if err != nil {
				return err
			}
			defer e.close()
			if e.cfg.Database.DSN == "" {
				return errors.ConfigInvalid("DATABASE_URL is not set")
			}

			conn, err := openStore(ctx, e)
			if err != nil {
				return err
			}
			status, err := migrations.NewMigrator(conn).Status(ctx)
			if err != nil {
				return err
			}

			versions := make([]string, 0, len(status))
			for v := range status {
				versions = append(versions, v)
			}
			sort.Strings(versions)
			for _, v := range versions {
				state := "pending"
				if status[v] {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v, state)
			}
			return nil
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(path string, rec *evidence.ComparisonRecord) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data = report.HTML(rec)
	default:
		data = []byte(report.Markdown(rec))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeInternalError, err), "failed to write %s", path)
	}
	return nil
}
