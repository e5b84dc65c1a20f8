package apk

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/huanfeng/pkgscope/pkg/models"
)

const configInfix = ".config."

var densities = map[string]string{
	"ldpi":    "low density",
	"mdpi":    "medium density",
	"tvdpi":   "TV density",
	"hdpi":    "high density",
	"xhdpi":   "extra high density",
	"xxhdpi":  "extra extra high density",
	"xxxhdpi": "extra extra extra high density",
	"nodpi":   "density independent",
	"anydpi":  "any density",
}

// ParseSplitMetadata works out what a split provides from its name, e.g.
// "split_config.arm64_v8a.apk" is an ABI split for arm64-v8a and
// "split_feature_map.config.fr" is the French part of a feature split.
func ParseSplitMetadata(name string) models.SplitMetadata {
	qualifier := strings.TrimSuffix(name, ".apk")
	feature := true
	switch {
	case strings.HasPrefix(qualifier, "split_config."):
		qualifier = strings.TrimPrefix(qualifier, "split_config.")
		feature = false
	case strings.HasPrefix(qualifier, "config."):
		qualifier = strings.TrimPrefix(qualifier, "config.")
		feature = false
	default:
		qualifier = strings.TrimPrefix(qualifier, "base-")
		qualifier = strings.TrimPrefix(qualifier, "split-")
	}

	config := qualifier
	featureConfig := false
	if i := strings.LastIndex(qualifier, configInfix); i >= 0 {
		config = qualifier[i+len(configInfix):]
		featureConfig = feature
	}
	typ := func(t models.SplitType) models.SplitType {
		if featureConfig {
			return models.SplitTypeFeature
		}
		return t
	}

	if arch := models.ArchitectureFromABI(config); arch.Known() {
		return models.SplitMetadata{
			Type:        typ(models.SplitTypeArchitecture),
			Filter:      models.FilterABI,
			ConfigValue: string(arch),
			Description: string(arch),
		}
	}

	if desc, ok := densityName(config); ok {
		return models.SplitMetadata{
			Type:        typ(models.SplitTypeDensity),
			Filter:      models.FilterDensity,
			ConfigValue: config,
			Description: desc,
		}
	}

	if desc, ok := languageName(config); ok {
		return models.SplitMetadata{
			Type:        typ(models.SplitTypeLanguage),
			Filter:      models.FilterLanguage,
			ConfigValue: config,
			Description: desc,
		}
	}

	return models.SplitMetadata{Type: models.SplitTypeFeature, Filter: models.FilterNone}
}

func densityName(s string) (string, bool) {
	if d, ok := densities[s]; ok {
		return d, true
	}
	digits, ok := strings.CutSuffix(s, "dpi")
	if !ok || digits == "" {
		return "", false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return s + " density", true
}

// languageName accepts short BCP 47 tags with a known language, such as
// "fr" or "zh-CN".
func languageName(s string) (string, bool) {
	if s == "" || len(s) > 8 || strings.ContainsAny(s, "._") {
		return "", false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return "", false
	}
	name := display.English.Tags().Name(tag)
	if name == "" || strings.EqualFold(name, s) {
		return "", false
	}
	return name, true
}
