package cmd

import "github.com/huanfeng/pkgscope/internal/i18n"

// applyCommandLocalization updates command and flag descriptions after i18n is initialized.
func applyCommandLocalization() {
	rootCmd.Short = i18n.T("cmd.root.short")
	rootCmd.Long = i18n.T("cmd.root.long")

	persistent := map[string]string{
		"config":       "flags.config",
		"log-level":    "flags.logLevel",
		"lang":         "flags.lang",
		"metrics-file": "flags.metricsFile",
	}
	for name, id := range persistent {
		if flag := rootCmd.PersistentFlags().Lookup(name); flag != nil {
			flag.Usage = i18n.T(id)
		}
	}

	classifyCmd.Short = i18n.T("cmd.classify.short")
	analyseCmd.Short = i18n.T("cmd.analyse.short")
	scanCmd.Short = i18n.T("cmd.scan.short")
	watchCmd.Short = i18n.T("cmd.watch.short")
	strategiesCmd.Short = i18n.T("cmd.strategies.short")
	configCmd.Short = i18n.T("cmd.config.short")
	configInitCmd.Short = i18n.T("cmd.config.init.short")
	configShowCmd.Short = i18n.T("cmd.config.show.short")
	versionCmd.Short = i18n.T("cmd.version.short")
	devicesCmd.Short = i18n.T("cmd.devices.short")

	local := map[string]string{
		"module-flash": "flags.moduleFlash",
		"cache-dir":    "flags.cacheDir",
		"keep":         "flags.keep",
		"type":         "flags.type",
		"output":       "flags.output",
		"recursive":    "flags.recursive",
		"index":        "flags.index",
		"error-report": "flags.errorReport",
		"progress":     "flags.progress",
		"device":       "flags.device",
	}
	for _, c := range rootCmd.Commands() {
		for name, id := range local {
			if flag := c.Flags().Lookup(name); flag != nil {
				flag.Usage = i18n.T(id)
			}
		}
	}
}
