package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrorReport summarises the failures of one run.
type ErrorReport struct {
	Timestamp   time.Time            `json:"timestamp"`
	Failures    []Failure            `json:"failures"`
	Stats       ErrorStats           `json:"stats"`
	Environment *EnvironmentInfo     `json:"environment"`
	Context     *OperationContext    `json:"context,omitempty"`
	Suggestions []RecoverySuggestion `json:"suggestions"`
}

// Failure is one input that could not be analysed.
type Failure struct {
	Source  string            `json:"source"`
	Type    string            `json:"type"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// EnvironmentInfo contains information about the runtime environment
type EnvironmentInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	GoVersion    string `json:"go_version"`
	Version      string `json:"version"`
	WorkingDir   string `json:"working_dir"`
	ConfigPath   string `json:"config_path,omitempty"`
}

// OperationContext contains information about the operation that failed
type OperationContext struct {
	Command   string            `json:"command"`
	Arguments []string          `json:"arguments"`
	Flags     map[string]string `json:"flags,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// RecoverySuggestion represents a suggested recovery action
type RecoverySuggestion struct {
	Priority    int    `json:"priority"` // 1 = high, 2 = medium, 3 = low
	Category    string `json:"category"` // "input", "configuration", "environment"
	Action      string `json:"action"`
	Description string `json:"description"`
}

// ErrorReporter builds and stores error reports.
type ErrorReporter struct {
	reportDir string
	version   string
	logger    Logger
}

// NewErrorReporter creates a new error reporter
func NewErrorReporter(reportDir, version string, logger Logger) *ErrorReporter {
	return &ErrorReporter{
		reportDir: reportDir,
		version:   version,
		logger:    logger,
	}
}

// GenerateReport turns per-source errors into a report. Nil errors are skipped.
func (er *ErrorReporter) GenerateReport(failures map[string]error, stats ErrorStats, opCtx *OperationContext) *ErrorReport {
	report := &ErrorReport{
		Timestamp:   time.Now(),
		Stats:       stats,
		Context:     opCtx,
		Environment: er.gatherEnvironmentInfo(),
	}

	sources := make([]string, 0, len(failures))
	for src := range failures {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	seen := make(map[ErrorType]bool)
	for _, src := range sources {
		err := failures[src]
		if err == nil {
			continue
		}
		f := Failure{Source: src, Type: ErrorTypeUnknown.String(), Code: "UNKNOWN", Message: err.Error()}
		var pe *PkgError
		if stderrors.As(err, &pe) {
			f.Type = pe.Type.String()
			f.Code = pe.Code
			f.Context = pe.Context
			seen[pe.Type] = true
		} else {
			seen[ErrorTypeUnknown] = true
		}
		report.Failures = append(report.Failures, f)
	}

	report.Suggestions = er.generateRecoverySuggestions(seen)
	return report
}

// SaveReport writes report as JSON into the report directory and returns its path.
func (er *ErrorReporter) SaveReport(report *ErrorReport) (string, error) {
	if err := os.MkdirAll(er.reportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := report.Timestamp.Format("20060102_150405")
	path := filepath.Join(er.reportDir, fmt.Sprintf("error_report_%s.json", timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if er.logger != nil {
		er.logger.Debug("error report written to %s", path)
	}
	return path, nil
}

// DisplayReport writes a human readable form of report to w.
func (er *ErrorReporter) DisplayReport(w io.Writer, report *ErrorReport) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "ERROR REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "Time: %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Failures: %d\n", len(report.Failures))

	if len(report.Stats.ErrorsByType) > 0 {
		types := make([]ErrorType, 0, len(report.Stats.ErrorsByType))
		for t := range report.Stats.ErrorsByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fmt.Fprintf(w, "  %s: %d\n", t, report.Stats.ErrorsByType[t])
		}
	}

	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "\nFAILURES")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, f := range report.Failures {
			fmt.Fprintf(w, "%s\n   %s [%s] %s\n", f.Source, f.Type, f.Code, f.Message)
		}
	}

	if report.Context != nil {
		fmt.Fprintln(w, "\nOPERATION CONTEXT")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		fmt.Fprintf(w, "Command: %s\n", report.Context.Command)
		if len(report.Context.Arguments) > 0 {
			fmt.Fprintf(w, "Arguments: %s\n", strings.Join(report.Context.Arguments, " "))
		}
		if report.Context.Duration > 0 {
			fmt.Fprintf(w, "Duration: %v\n", report.Context.Duration)
		}
	}

	if env := report.Environment; env != nil {
		fmt.Fprintln(w, "\nENVIRONMENT")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		fmt.Fprintf(w, "OS/Arch: %s/%s\n", env.OS, env.Architecture)
		fmt.Fprintf(w, "Go: %s\n", env.GoVersion)
		fmt.Fprintf(w, "Version: %s\n", env.Version)
	}

	if len(report.Suggestions) > 0 {
		fmt.Fprintln(w, "\nRECOVERY SUGGESTIONS")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for i, s := range report.Suggestions {
			fmt.Fprintf(w, "%d. %s\n", i+1, s.Action)
			if s.Description != "" {
				fmt.Fprintf(w, "   %s\n", s.Description)
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func (er *ErrorReporter) gatherEnvironmentInfo() *EnvironmentInfo {
	info := &EnvironmentInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		Version:      er.version,
	}
	if wd, err := os.Getwd(); err == nil {
		info.WorkingDir = wd
	}
	return info
}

// generateRecoverySuggestions returns advice for each error category seen,
// highest priority first.
func (er *ErrorReporter) generateRecoverySuggestions(seen map[ErrorType]bool) []RecoverySuggestion {
	var suggestions []RecoverySuggestion

	if seen[ErrorTypeClassification] {
		suggestions = append(suggestions, RecoverySuggestion{
			Priority:    1,
			Category:    "input",
			Action:      "Check unreadable inputs",
			Description: "The file could not be opened as a ZIP archive; it may be truncated or not a package at all",
		})
	}
	if seen[ErrorTypeAnchorMissing] {
		suggestions = append(suggestions, RecoverySuggestion{
			Priority:    1,
			Category:    "input",
			Action:      "Re-download incomplete bundles",
			Description: "A bundle is missing its base APK or its info.json / manifest.json sidecar",
		})
	}
	if seen[ErrorTypeParsing] {
		suggestions = append(suggestions, RecoverySuggestion{
			Priority:    1,
			Category:    "input",
			Action:      "Verify file integrity",
			Description: "The APK manifest could not be decoded; check if the file is corrupted",
		})
	}
	if seen[ErrorTypeFileSystem] {
		suggestions = append(suggestions, RecoverySuggestion{
			Priority:    1,
			Category:    "environment",
			Action:      "Check the cache directory",
			Description: "Ensure the cache directory is writable and has free space for extracted APKs",
		})
	}
	if seen[ErrorTypeConfiguration] {
		suggestions = append(suggestions, RecoverySuggestion{
			Priority:    2,
			Category:    "configuration",
			Action:      "Regenerate configuration",
			Description: "Write a fresh configuration file with 'pkgscope config init'",
		})
	}

	suggestions = append(suggestions, RecoverySuggestion{
		Priority:    3,
		Category:    "environment",
		Action:      "Re-run with debug logging",
		Description: "Use --log-level debug to see each classification and extraction step",
	})

	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].Priority < suggestions[j].Priority })
	return suggestions
}
