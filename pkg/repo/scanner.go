package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// Scanner finds package files in a directory tree and analyses them.
type Scanner struct {
	config   models.ScanningConfig
	analyser *Analyser
	extra    analyser.Extra
}

// NewScanner creates a new scanner instance
func NewScanner(config models.ScanningConfig, a *Analyser, extra analyser.Extra) *Scanner {
	return &Scanner{
		config:   config,
		analyser: a,
		extra:    extra,
	}
}

// ScanResult represents the result of scanning
type ScanResult struct {
	Root       string
	TotalFiles int
	Skipped    int
	*Result
	// WalkErrors are paths that could not be visited.
	WalkErrors []error
	Duration   time.Duration
}

// Files lists the files Scan would analyse, sorted.
func (s *Scanner) Files(ctx context.Context, directory string) ([]string, int, []error, error) {
	var (
		files   []string
		skipped int
		errs    []error
	)
	err := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil // Continue scanning
		}

		if d.IsDir() {
			if !s.config.Recursive && path != directory {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !s.config.FollowSymlinks {
				return nil
			}
			fi, err := os.Stat(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("error resolving %s: %w", path, err))
				return nil
			}
			if fi.IsDir() {
				return nil
			}
		}

		if !s.Matches(path) {
			skipped++
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, 0, errs, fmt.Errorf("error walking directory: %w", err)
	}
	sort.Strings(files)
	return files, skipped, errs, nil
}

// Scan analyses every matching file below directory. Files that fail are
// reported in the result without stopping the scan.
func (s *Scanner) Scan(ctx context.Context, directory string) (*ScanResult, error) {
	start := time.Now()
	files, skipped, walkErrs, err := s.Files(ctx, directory)
	if err != nil {
		return nil, err
	}

	refs := make([]models.DataRef, len(files))
	for i, f := range files {
		refs[i] = &models.FileRef{Path: f}
	}
	res, err := s.analyser.Analyse(ctx, refs, s.extra)
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Root:       directory,
		TotalFiles: len(files),
		Skipped:    skipped,
		Result:     res,
		WalkErrors: walkErrs,
		Duration:   time.Since(start),
	}, nil
}

// Matches checks a path against the include and exclude patterns. Exclude
// patterns are tried against the base name and the whole path; with no
// include patterns every known package extension is accepted.
func (s *Scanner) Matches(path string) bool {
	filename := filepath.Base(path)

	for _, pattern := range s.config.ExcludePattern {
		if matched, _ := filepath.Match(pattern, filename); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return false
		}
	}

	if len(s.config.IncludePattern) == 0 {
		return apk.IsPackageFile(filename)
	}
	for _, pattern := range s.config.IncludePattern {
		if matched, _ := filepath.Match(pattern, filename); matched {
			return true
		}
	}
	return false
}
