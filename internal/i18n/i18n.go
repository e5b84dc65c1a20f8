// Package i18n localizes command help and report text.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var (
	mu              sync.RWMutex
	localizer       *goi18n.Localizer
	currentLanguage = language.English

	supported = []language.Tag{language.English, language.SimplifiedChinese}
	matcher   = language.NewMatcher(supported)
)

//go:embed locales/*.toml
var localeFS embed.FS

// Init loads the embedded catalogues and picks a language from, in order:
// langOverride, PKGSCOPE_LANG, LC_ALL, LC_MESSAGES, LANG and the platform
// preference. English is the fallback.
func Init(langOverride string) error {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	for _, e := range entries {
		if _, err := b.LoadMessageFileFS(localeFS, "locales/"+e.Name()); err != nil {
			return fmt.Errorf("load %s: %w", e.Name(), err)
		}
	}

	chosen := selectLanguage(candidates(langOverride))

	mu.Lock()
	localizer = goi18n.NewLocalizer(b, chosen.String(), language.English.String())
	currentLanguage = chosen
	mu.Unlock()
	return nil
}

// T translates a message by ID. Missing IDs come back unchanged.
func T(id string, data ...map[string]interface{}) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()

	if l == nil {
		if err := Init(""); err != nil {
			fmt.Fprintf(os.Stderr, "i18n init failed: %v\n", err)
			return id
		}
		mu.RLock()
		l = localizer
		mu.RUnlock()
	}

	var templateData map[string]interface{}
	if len(data) > 0 {
		templateData = data[0]
	}

	msg, err := l.Localize(&goi18n.LocalizeConfig{
		MessageID:      id,
		TemplateData:   templateData,
		PluralCount:    findPluralCount(templateData),
		DefaultMessage: &goi18n.Message{ID: id, Other: id},
	})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// CurrentLanguage returns the chosen language tag.
func CurrentLanguage() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return currentLanguage
}

func candidates(langOverride string) []string {
	var out []string
	if langOverride != "" {
		out = append(out, langOverride)
	}
	for _, key := range []string{"PKGSCOPE_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			out = append(out, val)
		}
	}
	if len(out) == 0 {
		out = getPlatformLocales()
	}
	return out
}

// selectLanguage matches POSIX style locales (zh_CN.UTF-8) and BCP 47 tags
// against the shipped catalogues.
func selectLanguage(locales []string) language.Tag {
	var tags []language.Tag
	for _, loc := range locales {
		clean := strings.TrimSpace(loc)
		if i := strings.IndexAny(clean, ".@"); i >= 0 {
			clean = clean[:i]
		}
		clean = strings.ReplaceAll(clean, "_", "-")
		if clean == "" || clean == "C" || clean == "POSIX" {
			continue
		}
		if tag, err := language.Parse(clean); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return language.English
	}

	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

func findPluralCount(data map[string]interface{}) interface{} {
	for _, key := range []string{"Count", "count", "Total", "total"} {
		if val, ok := data[key]; ok {
			return val
		}
	}
	return nil
}
