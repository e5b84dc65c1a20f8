package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/spf13/viper"
)

var defaultConfig = models.Config{
	Analysis: models.AnalysisConfig{
		CacheDir:        "",
		ModuleFlash:     false,
		SupportedArchs:  []string{},
		IconSize:        144,
		IconDensity:     480,
		SignatureHash:   true,
		Workers:         4,
		MaxManifestSize: 8 << 20,
		ADBPath:         "adb",
	},
	Scanning: models.ScanningConfig{
		Recursive:      true,
		FollowSymlinks: false,
		IncludePattern: []string{"*.apk", "*.apks", "*.apkm", "*.xapk", "*.zip"},
		ExcludePattern: []string{},
		WatchDebounce:  "500ms",
	},
	Log: models.LogConfig{
		Level:  "info",
		Format: "text",
	},
}

// Default returns a copy of the built-in configuration.
func Default() *models.Config {
	c := defaultConfig
	c.Analysis.SupportedArchs = append([]string(nil), defaultConfig.Analysis.SupportedArchs...)
	c.Scanning.IncludePattern = append([]string(nil), defaultConfig.Scanning.IncludePattern...)
	c.Scanning.ExcludePattern = append([]string(nil), defaultConfig.Scanning.ExcludePattern...)
	return &c
}

// Load loads configuration from file and environment
func Load(configPath string) (*models.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("analysis.cache_dir", defaultConfig.Analysis.CacheDir)
	v.SetDefault("analysis.module_flash", defaultConfig.Analysis.ModuleFlash)
	v.SetDefault("analysis.supported_archs", defaultConfig.Analysis.SupportedArchs)
	v.SetDefault("analysis.icon_size", defaultConfig.Analysis.IconSize)
	v.SetDefault("analysis.icon_density", defaultConfig.Analysis.IconDensity)
	v.SetDefault("analysis.signature_hash", defaultConfig.Analysis.SignatureHash)
	v.SetDefault("analysis.workers", defaultConfig.Analysis.Workers)
	v.SetDefault("analysis.max_manifest_size", defaultConfig.Analysis.MaxManifestSize)
	v.SetDefault("analysis.keep_extracted_files", defaultConfig.Analysis.KeepExtractedFiles)
	v.SetDefault("analysis.adb_path", defaultConfig.Analysis.ADBPath)
	v.SetDefault("scanning.recursive", defaultConfig.Scanning.Recursive)
	v.SetDefault("scanning.follow_symlinks", defaultConfig.Scanning.FollowSymlinks)
	v.SetDefault("scanning.include_pattern", defaultConfig.Scanning.IncludePattern)
	v.SetDefault("scanning.exclude_pattern", defaultConfig.Scanning.ExcludePattern)
	v.SetDefault("scanning.watch_debounce", defaultConfig.Scanning.WatchDebounce)
	v.SetDefault("log.level", defaultConfig.Log.Level)
	v.SetDefault("log.format", defaultConfig.Log.Format)
	v.SetDefault("log.file", defaultConfig.Log.File)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pkgscope")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pkgscope"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.NewConfigurationError(errors.CodeBadConfig, "failed to read config file", err)
		}
	}

	v.SetEnvPrefix("PKGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeBadConfig, "failed to unmarshal config", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check on its own.
func Validate(cfg *models.Config) error {
	if cfg.Analysis.Workers < 0 {
		return errors.NewConfigurationError(errors.CodeBadConfig,
			fmt.Sprintf("analysis.workers must not be negative, got %d", cfg.Analysis.Workers), nil)
	}
	for _, a := range cfg.Analysis.SupportedArchs {
		if !models.ArchitectureFromABI(a).Known() {
			return errors.NewConfigurationError(errors.CodeBadConfig,
				fmt.Sprintf("analysis.supported_archs: unknown ABI %q", a), nil)
		}
	}
	if cfg.Scanning.WatchDebounce != "" {
		if _, err := time.ParseDuration(cfg.Scanning.WatchDebounce); err != nil {
			return errors.NewConfigurationError(errors.CodeBadConfig, "scanning.watch_debounce is not a duration", err)
		}
	}
	return nil
}

// CacheDir returns the directory extracted entries are written to.
func CacheDir(cfg *models.Config) string {
	if cfg.Analysis.CacheDir != "" {
		return cfg.Analysis.CacheDir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pkgscope")
	}
	return filepath.Join(os.TempDir(), "pkgscope")
}

// SaveTemplate saves a configuration template
func SaveTemplate(path string) error {
	templateContent := `# pkgscope configuration file

analysis:
  # Directory embedded APKs are extracted to (empty = user cache dir)
  cache_dir: ""

  # Recognise Magisk/KernelSU/APatch module archives
  module_flash: false

  # Device ABIs in preference order (empty = derive from this machine)
  supported_archs: []

  # Decoded icons are scaled to this edge length in pixels (0 = keep)
  icon_size: 144

  # Screen density used when picking icon resources
  icon_density: 480

  # Compute the SHA-256 of the signing certificate
  signature_hash: true

  # Parallel extractions inside one multi-APK archive
  workers: 4

  # Upper bound for AndroidManifest.xml in bytes
  max_manifest_size: 8388608

  # Keep extracted temp files after the command finishes
  keep_extracted_files: false

  # adb binary used by --device and the devices command
  adb_path: "adb"

scanning:
  recursive: true
  follow_symlinks: false
  include_pattern:
    - "*.apk"
    - "*.apks"
    - "*.apkm"
    - "*.xapk"
    - "*.zip"
  exclude_pattern: []
  watch_debounce: "500ms"

log:
  level: "info"
  format: "text"
  file: ""
`

	return os.WriteFile(path, []byte(templateContent), 0644)
}
