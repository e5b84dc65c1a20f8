package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List container strategies and APK readers",
	RunE: func(cmd *cobra.Command, args []string) error {
		d := analyser.NewDispatcher(analysisOptions(cfg))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONTAINER\tSTRATEGY")
		fmt.Fprintln(w, "---------\t--------")
		for _, t := range models.AllContainerTypes() {
			name := "-"
			if s, ok := d.Strategy(t); ok {
				name = s.Name()
			}
			fmt.Fprintf(w, "%s\t%s\n", t, name)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println()

		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "READER\tVERSION\tAVAILABLE\tPRIORITY\tCAPABILITIES")
		fmt.Fprintln(w, "------\t-------\t---------\t--------\t------------")
		for _, info := range apk.DefaultOpenerChain(logger).Openers() {
			available := "No"
			if info.Available {
				available = "Yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				info.Name,
				info.Version,
				available,
				info.Priority,
				strings.Join(info.Capabilities, ", "),
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
