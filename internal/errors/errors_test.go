package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinels(t *testing.T) {
	cause := stderrors.New("zip: not a valid zip file")
	err := fmt.Errorf("wrapped: %w", NewClassificationError("a.bin", cause))

	assert.ErrorIs(t, err, ErrClassification)
	assert.NotErrorIs(t, err, ErrParsing)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &PkgError{Type: ErrorTypeClassification, Code: CodeOpenArchive})
	assert.NotErrorIs(t, err, &PkgError{Type: ErrorTypeClassification, Code: "OTHER"})
	assert.Equal(t, ErrorTypeClassification, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
}

func TestFormatDetailed(t *testing.T) {
	err := NewParsingError("BAD_MANIFEST", "cannot decode manifest", stderrors.New("short chunk")).
		WithContext("source", "a.apk").
		WithContext("entry", "AndroidManifest.xml")

	out := err.FormatDetailed()
	assert.Contains(t, out, "PARSING error [BAD_MANIFEST]: cannot decode manifest")
	assert.Contains(t, out, "   entry: AndroidManifest.xml\n   source: a.apk")
	assert.Contains(t, out, "Underlying cause: short chunk")
	assert.Contains(t, out, "- Check if the file is corrupted")
}

func TestErrorHandler(t *testing.T) {
	h := NewErrorHandler(nil)
	assert.Nil(t, h.Handle(nil))

	h.Handle(NewParsingError("X", "x", nil))
	h.Handle(NewParsingError("Y", "y", nil))
	pe := h.Handle(stderrors.New("plain"))
	require.NotNil(t, pe)
	assert.Equal(t, ErrorTypeUnknown, pe.Type)

	stats := h.GetStats()
	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 2, stats.ErrorsByType[ErrorTypeParsing])
	assert.Equal(t, 1, stats.ErrorsByCode["UNKNOWN"])

	// the copy is detached from the handler
	stats.ErrorsByType[ErrorTypeParsing] = 99
	assert.Equal(t, 2, h.GetStats().ErrorsByType[ErrorTypeParsing])

	h.Reset()
	assert.Zero(t, h.GetStats().TotalErrors)
}

func TestErrorReporter(t *testing.T) {
	dir := t.TempDir()
	r := NewErrorReporter(dir, "1.2.3", nil)

	h := NewErrorHandler(nil)
	failures := map[string]error{
		"b.apks": NewAnchorMissingError(CodeMissingBase, "b.apks", "no base", nil),
		"a.apk":  NewParsingError("BAD_MANIFEST", "bad manifest", nil),
		"ok.apk": nil,
	}
	for _, err := range failures {
		h.Handle(err)
	}

	report := r.GenerateReport(failures, h.GetStats(), &OperationContext{Command: "scan", Arguments: []string{"dl"}})
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "a.apk", report.Failures[0].Source)
	assert.Equal(t, "PARSING", report.Failures[0].Type)
	assert.Equal(t, "ANCHOR_MISSING", report.Failures[1].Type)
	assert.Equal(t, "1.2.3", report.Environment.Version)

	require.NotEmpty(t, report.Suggestions)
	assert.Equal(t, 1, report.Suggestions[0].Priority)
	assert.Equal(t, 3, report.Suggestions[len(report.Suggestions)-1].Priority)

	path, err := r.SaveReport(report)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded ErrorReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Failures, decoded.Failures)

	var buf bytes.Buffer
	r.DisplayReport(&buf, report)
	assert.Contains(t, buf.String(), "Failures: 2")
	assert.Contains(t, buf.String(), "b.apks\n   ANCHOR_MISSING")
	assert.Contains(t, buf.String(), "Command: scan")
}
