package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/internal/config"
	"github.com/huanfeng/pkgscope/internal/device"
	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/internal/i18n"
	"github.com/huanfeng/pkgscope/internal/metrics"
	"github.com/huanfeng/pkgscope/internal/version"
	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/system"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

var (
	cfgFile     string
	logLevel    string
	langFlag    string
	metricsFile string

	cfg      *models.Config
	logger   utils.Logger = utils.NopLogger()
	recorder *metrics.Recorder
)

var rootCmd = &cobra.Command{
	Use:           "pkgscope",
	Short:         "Inspect Android package containers",
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}

		if err := utils.InitGlobalLogger(&utils.LoggerConfig{
			Level:       utils.ParseLogLevel(cfg.Log.Level),
			Format:      utils.ParseLogFormat(cfg.Log.Format),
			Output:      os.Stderr,
			EnableFile:  cfg.Log.File != "",
			FilePath:    cfg.Log.File,
			EnableColor: true,
		}); err != nil {
			return fmt.Errorf("failed to initialise logging: %w", err)
		}
		logger = utils.GetGlobalLogger()

		if metricsFile != "" {
			recorder = metrics.New("")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := i18n.Init(preParseLang(os.Args[1:])); err != nil {
		fmt.Fprintf(os.Stderr, "i18n: %v\n", err)
	}
	applyCommandLocalization()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file")
	pf.StringVar(&logLevel, "log-level", "info", "log level")
	pf.StringVar(&langFlag, "lang", "", "interface language")
	pf.StringVar(&metricsFile, "metrics-file", "", "write metrics to this file")
}

// preParseLang finds --lang before cobra parses flags so help text can be
// localized.
func preParseLang(args []string) string {
	for i, a := range args {
		switch {
		case a == "--lang" && i+1 < len(args):
			return args[i+1]
		case len(a) > 7 && a[:7] == "--lang=":
			return a[7:]
		}
	}
	return ""
}

// analysisOptions maps the loaded configuration onto dispatcher options.
func analysisOptions(c *models.Config) analyser.Options {
	var archs []models.Architecture
	for _, abi := range c.Analysis.SupportedArchs {
		archs = append(archs, models.ArchitectureFromABI(abi))
	}
	return analyser.Options{
		Archs:         archs,
		IconSize:      c.Analysis.IconSize,
		IconDensity:   c.Analysis.IconDensity,
		SignatureHash: c.Analysis.SignatureHash,
		ManifestLimit: c.Analysis.MaxManifestSize,
		Workers:       c.Analysis.Workers,
		Logger:        logger,
		Metrics:       recorder,
	}
}

// analysisFlags are shared by the commands that dispatch inputs.
type analysisFlags struct {
	moduleFlash bool
	cacheDir    string
	keep        bool
	device      string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.moduleFlash, "module-flash", false, "recognise root module archives")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "directory for extracted APKs")
	cmd.Flags().BoolVar(&f.keep, "keep", false, "keep extracted APKs")
	cmd.Flags().StringVar(&f.device, "device", "", "take the ABI list from this adb device")
}

// options returns dispatcher options, with the ABI list of the --device
// serial when given. "auto" picks the only connected device.
func (f *analysisFlags) options(cmd *cobra.Command) (analyser.Options, error) {
	opts := analysisOptions(cfg)
	if f.device == "" {
		return opts, nil
	}
	serial := f.device
	if serial == "auto" {
		serial = ""
	}
	archs, err := device.NewADB(cfg.Analysis.ADBPath).ArchProvider(cmd.Context(), serial)
	if err != nil {
		return opts, pkgerrors.NewConfigurationError(pkgerrors.CodeBadConfig, "cannot read device ABIs", err)
	}
	logger.Debug("device ABIs: %v", archs)
	opts.Archs = archs
	return opts, nil
}

func (f *analysisFlags) extra(cmd *cobra.Command) analyser.Extra {
	extra := analyser.Extra{
		CacheDir:           config.CacheDir(cfg),
		ModuleFlashEnabled: cfg.Analysis.ModuleFlash,
	}
	if cmd.Flags().Changed("module-flash") {
		extra.ModuleFlashEnabled = f.moduleFlash
	}
	if f.cacheDir != "" {
		extra.CacheDir = f.cacheDir
	}
	return extra
}

// release removes extracted files unless the user asked to keep them.
func (f *analysisFlags) release(entities []models.AppEntity) {
	if f.keep || cfg.Analysis.KeepExtractedFiles {
		return
	}
	if err := models.Release(entities); err != nil {
		logger.Warn("cleanup: %v", err)
	}
}

// preflight warns when the cache directory cannot take the extracted files.
func preflight(extra analyser.Extra, need uint64) {
	res, err := system.CheckCacheDir(extra.CacheDir, need)
	if err != nil {
		logger.Warn("%v", err)
		return
	}
	logger.Debug("cache directory %s: %d bytes available", res.Dir, res.Available)
}
