package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/internal/i18n"
	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/repo"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

var (
	analyseFlags  analysisFlags
	analyseType     string
	analyseOutput   string
	analyseProgress bool
)

var analyseCmd = &cobra.Command{
	Use:     "analyse <file>...",
	Aliases: []string{"analyze", "parse"},
	Short:   "Analyse package files and print their entities",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		extra := analyseFlags.extra(cmd)
		if analyseType != "" {
			t, err := models.ParseContainerType(analyseType)
			if err != nil {
				return err
			}
			extra.DataType = t
		}

		refs := make([]models.DataRef, len(args))
		var need uint64
		for i, arg := range args {
			ref := &models.FileRef{Path: arg}
			if n := ref.Size(); n > 0 {
				need += uint64(n)
			}
			refs[i] = ref
		}
		preflight(extra, need)

		opts, err := analyseFlags.options(cmd)
		if err != nil {
			return err
		}
		a := repo.NewAnalyser(analyser.NewDispatcher(opts))
		var bar *utils.ProgressBar
		if len(refs) > 1 && analyseProgress {
			bar = utils.NewProgressBar(os.Stderr, int64(len(refs)), "analysing")
			a.OnReport = func(done, total int, r repo.Report) {
				bar.SetDescription(filepath.Base(r.Ref.String()))
				bar.Update(int64(done))
			}
		}
		res, err := a.Analyse(cmd.Context(), refs, extra)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return err
		}
		defer analyseFlags.release(res.Entities)

		structured, err := writeStructured(os.Stdout, analyseOutput, struct {
			Inputs   []inputView  `json:"inputs" yaml:"inputs"`
			Entities []entityView `json:"entities" yaml:"entities"`
		}{viewReports(res.Reports), viewEntities(res.Entities)})
		if err != nil {
			return err
		}
		if !structured {
			for _, r := range res.Reports {
				switch {
				case r.Err != nil:
					fmt.Fprintf(os.Stderr, "%s: %v\n", r.Ref, r.Err)
				case r.Type == models.ContainerNone:
					fmt.Fprintln(os.Stderr, i18n.T("analyse.none", map[string]interface{}{"Source": r.Ref.String()}))
				}
			}
			if err := writeEntityTable(os.Stdout, res.Entities); err != nil {
				return err
			}
		}

		if failed := len(res.Failed()); failed > 0 {
			return fmt.Errorf("%s", i18n.T("scan.failed", map[string]interface{}{"Count": failed}))
		}
		return nil
	},
}

func init() {
	analyseFlags.register(analyseCmd)
	analyseCmd.Flags().StringVar(&analyseType, "type", "", "container type")
	analyseCmd.Flags().StringVarP(&analyseOutput, "output", "o", "text", "output format")
	analyseCmd.Flags().BoolVar(&analyseProgress, "progress", true, "show progress")
	rootCmd.AddCommand(analyseCmd)
}
