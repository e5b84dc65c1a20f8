package apk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/huanfeng/pkgscope/pkg/models"
)

func TestParseSplitMetadata(t *testing.T) {
	tests := []struct {
		name string
		want models.SplitMetadata
	}{
		{"split_config.arm64_v8a.apk", models.SplitMetadata{
			Type: models.SplitTypeArchitecture, Filter: models.FilterABI, ConfigValue: "arm64-v8a", Description: "arm64-v8a",
		}},
		{"config.armeabi_v7a", models.SplitMetadata{
			Type: models.SplitTypeArchitecture, Filter: models.FilterABI, ConfigValue: "armeabi-v7a", Description: "armeabi-v7a",
		}},
		{"config.x86_64", models.SplitMetadata{
			Type: models.SplitTypeArchitecture, Filter: models.FilterABI, ConfigValue: "x86_64", Description: "x86_64",
		}},
		{"config.xxhdpi", models.SplitMetadata{
			Type: models.SplitTypeDensity, Filter: models.FilterDensity, ConfigValue: "xxhdpi", Description: "extra extra high density",
		}},
		{"config.480dpi", models.SplitMetadata{
			Type: models.SplitTypeDensity, Filter: models.FilterDensity, ConfigValue: "480dpi", Description: "480dpi density",
		}},
		{"config.fr", models.SplitMetadata{
			Type: models.SplitTypeLanguage, Filter: models.FilterLanguage, ConfigValue: "fr", Description: "French",
		}},
		{"split_feature_map.config.de", models.SplitMetadata{
			Type: models.SplitTypeFeature, Filter: models.FilterLanguage, ConfigValue: "de", Description: "German",
		}},
		{"split_feature_map", models.SplitMetadata{Type: models.SplitTypeFeature, Filter: models.FilterNone}},
		{"config.xdpi", models.SplitMetadata{Type: models.SplitTypeFeature, Filter: models.FilterNone}},
		{"config.", models.SplitMetadata{Type: models.SplitTypeFeature, Filter: models.FilterNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSplitMetadata(tt.name))
		})
	}
}

func TestLanguageName(t *testing.T) {
	for _, s := range []string{"en", "fr", "zh-CN", "pt-BR"} {
		name, ok := languageName(s)
		assert.True(t, ok, s)
		assert.NotEmpty(t, name, s)
	}
	for _, s := range []string{"", "und", "feature", "foo_bar", "a.b", "verylongname"} {
		_, ok := languageName(s)
		assert.False(t, ok, s)
	}
}
