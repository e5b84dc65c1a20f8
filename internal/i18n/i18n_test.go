package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestSelectLanguage(t *testing.T) {
	assert.Equal(t, language.English, selectLanguage(nil))
	assert.Equal(t, language.English, selectLanguage([]string{"C", "POSIX"}))
	assert.Equal(t, language.SimplifiedChinese, selectLanguage([]string{"zh_CN.UTF-8"}))
	assert.Equal(t, language.SimplifiedChinese, selectLanguage([]string{"de_DE", "zh-Hans"}))
	assert.Equal(t, language.English, selectLanguage([]string{"en_GB.UTF-8@euro"}))
}

func TestTranslate(t *testing.T) {
	require.NoError(t, Init("en"))
	assert.Equal(t, language.English, CurrentLanguage())
	assert.Equal(t, "Scanning /data", T("scan.header", map[string]interface{}{"Dir": "/data"}))
	assert.Equal(t, "1 entity found", T("scan.summary", map[string]interface{}{"Count": 1}))
	assert.Equal(t, "3 entities found", T("scan.summary", map[string]interface{}{"Count": 3}))
	assert.Equal(t, "no.such.id", T("no.such.id"))

	require.NoError(t, Init("zh_CN"))
	assert.Equal(t, "共找到 3 个条目", T("scan.summary", map[string]interface{}{"Count": 3}))
}
