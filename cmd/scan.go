package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/internal/i18n"
	"github.com/huanfeng/pkgscope/internal/version"
	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/repo"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

var (
	scanFlags        analysisFlags
	scanOutput       string
	scanIndexDir     string
	scanReportDir    string
	scanShowProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Analyse every package file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absDir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid directory path: %w", err)
		}
		if cmd.Flags().Changed("recursive") {
			cfg.Scanning.Recursive, _ = cmd.Flags().GetBool("recursive")
		}

		res, err := runScan(cmd, &scanFlags, absDir, scanShowProgress && scanOutput == "text")
		if err != nil {
			return err
		}
		defer scanFlags.release(res.Entities)

		if scanIndexDir != "" {
			if err := writeIndex(scanIndexDir, res); err != nil {
				return err
			}
		}

		structured, err := writeStructured(os.Stdout, scanOutput, struct {
			Root     string       `json:"root" yaml:"root"`
			Files    int          `json:"files" yaml:"files"`
			Skipped  int          `json:"skipped" yaml:"skipped"`
			Inputs   []inputView  `json:"inputs" yaml:"inputs"`
			Entities []entityView `json:"entities" yaml:"entities"`
		}{res.Root, res.TotalFiles, res.Skipped, viewReports(res.Reports), viewEntities(res.Entities)})
		if err != nil {
			return err
		}
		if !structured {
			if err := writeEntityTable(os.Stdout, res.Entities); err != nil {
				return err
			}
			fmt.Println(i18n.T("scan.summary", map[string]interface{}{"Count": len(res.Entities)}))
		}

		for _, werr := range res.WalkErrors {
			logger.Warn("%v", werr)
		}
		failed := res.Failed()
		if len(failed) == 0 {
			return nil
		}
		if scanReportDir != "" {
			if err := writeErrorReport(cmd, args, res); err != nil {
				logger.Error("%v", err)
			}
		}
		return fmt.Errorf("%s", i18n.T("scan.failed", map[string]interface{}{"Count": len(failed)}))
	},
}

// runScan analyses dir, optionally drawing a progress line on stderr.
func runScan(cmd *cobra.Command, flags *analysisFlags, dir string, showProgress bool) (*repo.ScanResult, error) {
	opts, err := flags.options(cmd)
	if err != nil {
		return nil, err
	}
	a := repo.NewAnalyser(analyser.NewDispatcher(opts))
	extra := flags.extra(cmd)
	preflight(extra, 0)
	scanner := repo.NewScanner(cfg.Scanning, a, extra)

	var progress *utils.ScanProgress
	if showProgress {
		fmt.Fprintln(os.Stderr, i18n.T("scan.header", map[string]interface{}{"Dir": dir}))
		progress = utils.NewScanProgress(os.Stderr)
		a.OnReport = func(done, total int, r repo.Report) {
			if done == 1 {
				progress.SetTotalFiles(total)
			}
			kinds := make([]string, 0, len(r.Entities))
			for _, e := range r.Entities {
				kinds = append(kinds, e.Kind().String())
			}
			progress.Record(filepath.Base(r.Ref.String()), kinds, r.Err != nil)
		}
	}

	res, err := scanner.Scan(cmd.Context(), dir)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress.Skipped = res.Skipped
		progress.ShowFinalStats()
	}
	return res, nil
}

func writeIndex(dir string, res *repo.ScanResult) error {
	ix, err := repo.NewIndex(dir, logger)
	if err != nil {
		return err
	}
	if _, err := ix.Update(res); err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	fmt.Fprintln(os.Stderr, i18n.T("scan.indexWritten", map[string]interface{}{"Path": ix.Layout().IndexPath()}))
	return nil
}

func writeErrorReport(cmd *cobra.Command, args []string, res *repo.ScanResult) error {
	failures := make(map[string]error)
	for _, r := range res.Failed() {
		failures[r.Ref.String()] = r.Err
	}

	reporter := pkgerrors.NewErrorReporter(scanReportDir, version.Short(), logger)
	report := reporter.GenerateReport(failures, res.Stats, &pkgerrors.OperationContext{
		Command:   cmd.CommandPath(),
		Arguments: args,
		Duration:  res.Duration.Round(time.Millisecond),
	})
	report.Environment.ConfigPath = cfgFile

	path, err := reporter.SaveReport(report)
	if err != nil {
		return err
	}
	reporter.DisplayReport(os.Stderr, report)
	fmt.Fprintln(os.Stderr, i18n.T("scan.reportWritten", map[string]interface{}{"Path": path}))
	return nil
}

func init() {
	scanFlags.register(scanCmd)
	scanCmd.Flags().BoolP("recursive", "r", true, "descend into subdirectories")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "text", "output format")
	scanCmd.Flags().StringVar(&scanIndexDir, "index", "", "index directory")
	scanCmd.Flags().StringVar(&scanReportDir, "error-report", "", "error report directory")
	scanCmd.Flags().BoolVar(&scanShowProgress, "progress", false, "show progress")
	rootCmd.AddCommand(scanCmd)
}
