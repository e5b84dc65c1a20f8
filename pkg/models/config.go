package models

// Config represents the application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis" json:"analysis" yaml:"analysis"`
	Scanning ScanningConfig `mapstructure:"scanning" json:"scanning" yaml:"scanning"`
	Log      LogConfig      `mapstructure:"log" json:"log" yaml:"log"`
}

// AnalysisConfig controls how containers are analysed
type AnalysisConfig struct {
	CacheDir           string   `mapstructure:"cache_dir" json:"cache_dir" yaml:"cache_dir"`
	ModuleFlash        bool     `mapstructure:"module_flash" json:"module_flash" yaml:"module_flash"`
	SupportedArchs     []string `mapstructure:"supported_archs" json:"supported_archs" yaml:"supported_archs"` // empty = derive from host
	IconSize           uint     `mapstructure:"icon_size" json:"icon_size" yaml:"icon_size"`                   // 0 = keep original size
	IconDensity        uint16   `mapstructure:"icon_density" json:"icon_density" yaml:"icon_density"`
	SignatureHash      bool     `mapstructure:"signature_hash" json:"signature_hash" yaml:"signature_hash"`
	Workers            int      `mapstructure:"workers" json:"workers" yaml:"workers"`
	MaxManifestSize    int64    `mapstructure:"max_manifest_size" json:"max_manifest_size" yaml:"max_manifest_size"`
	KeepExtractedFiles bool     `mapstructure:"keep_extracted_files" json:"keep_extracted_files" yaml:"keep_extracted_files"`
	ADBPath            string   `mapstructure:"adb_path" json:"adb_path" yaml:"adb_path"`
}

// ScanningConfig contains scanning-related configuration
type ScanningConfig struct {
	Recursive      bool     `mapstructure:"recursive" json:"recursive" yaml:"recursive"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks" json:"follow_symlinks" yaml:"follow_symlinks"`
	IncludePattern []string `mapstructure:"include_pattern" json:"include_pattern" yaml:"include_pattern"`
	ExcludePattern []string `mapstructure:"exclude_pattern" json:"exclude_pattern" yaml:"exclude_pattern"`
	WatchDebounce  string   `mapstructure:"watch_debounce" json:"watch_debounce" yaml:"watch_debounce"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
	File   string `mapstructure:"file" json:"file" yaml:"file"`
}
