package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/models"
)

var classifyModuleFlash bool

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Print the container type of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleFlash := cfg.Analysis.ModuleFlash
		if cmd.Flags().Changed("module-flash") {
			moduleFlash = classifyModuleFlash
		}
		d := analyser.NewDispatcher(analysisOptions(cfg))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		var failed int
		for _, arg := range args {
			t, err := d.Classify(cmd.Context(), &models.FileRef{Path: arg}, moduleFlash)
			if err != nil {
				failed++
				fmt.Fprintf(w, "%s\tERROR\t%v\n", arg, err)
				continue
			}
			strategy := "-"
			if s, ok := d.Strategy(t); ok {
				strategy = s.Name()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", arg, t, strategy)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyModuleFlash, "module-flash", false, "recognise root module archives")
	rootCmd.AddCommand(classifyCmd)
}
