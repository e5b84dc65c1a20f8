package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/internal/i18n"
	"github.com/huanfeng/pkgscope/internal/watcher"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/repo"
)

var (
	watchFlags    analysisFlags
	watchIndexDir string
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Rescan a directory whenever packages change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absDir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid directory path: %w", err)
		}

		debounce := 500 * time.Millisecond
		if cfg.Scanning.WatchDebounce != "" {
			if debounce, err = time.ParseDuration(cfg.Scanning.WatchDebounce); err != nil {
				return err
			}
		}

		rescan := func(ctx context.Context, changed []string) error {
			logger.Info("%s", i18n.T("watch.rescan"))
			logger.Debug("changed: %v", changed)
			res, err := runScan(cmd, &watchFlags, absDir, false)
			if err != nil {
				return err
			}
			defer watchFlags.release(res.Entities)

			counts := countEntities(res.Entities)
			logger.Info("%d files: %d base, %d split, %d dex metadata, %d module, %d failed",
				res.TotalFiles, counts[models.KindBase], counts[models.KindSplit],
				counts[models.KindDexMetadata], counts[models.KindModule], len(res.Failed()))
			if watchIndexDir != "" {
				return writeIndex(watchIndexDir, res)
			}
			return nil
		}

		// the first pass covers files already present
		if err := rescan(cmd.Context(), nil); err != nil {
			return err
		}

		matcher := repo.NewScanner(cfg.Scanning, nil, watchFlags.extra(cmd))
		w, err := watcher.New(absDir, watcher.Options{
			Recursive: cfg.Scanning.Recursive,
			Debounce:  debounce,
			Match:     matcher.Matches,
		}, rescan, logger)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, i18n.T("watch.started", map[string]interface{}{"Dir": absDir}))
		if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// countEntities tallies entities by kind.
func countEntities(entities []models.AppEntity) map[models.EntityKind]int {
	out := make(map[models.EntityKind]int)
	for _, e := range entities {
		out[e.Kind()]++
	}
	return out
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchIndexDir, "index", "", "index directory")
	rootCmd.AddCommand(watchCmd)
}
