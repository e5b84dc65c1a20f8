package utils

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
)

// ProgressBar draws a single line bar on w.
type ProgressBar struct {
	mu          sync.Mutex
	w           io.Writer
	total       int64
	current     int64
	description string
	startTime   time.Time
	width       int
	showETA     bool
}

// NewProgressBar creates a new progress bar
func NewProgressBar(w io.Writer, total int64, description string) *ProgressBar {
	return &ProgressBar{
		w:           w,
		total:       total,
		description: description,
		startTime:   time.Now(),
		width:       40,
		showETA:     true,
	}
}

// Update updates the progress bar
func (pb *ProgressBar) Update(current int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
	pb.render()
}

// SetDescription changes the label shown on the next render.
func (pb *ProgressBar) SetDescription(desc string) {
	pb.mu.Lock()
	pb.description = desc
	pb.mu.Unlock()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.w)
}

func (pb *ProgressBar) render() {
	if pb.total <= 0 {
		return
	}
	current := min(pb.current, pb.total)

	percentage := float64(current) / float64(pb.total) * 100
	filled := int(float64(pb.width) * float64(current) / float64(pb.total))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)

	var eta string
	if pb.showETA && current > 0 && current < pb.total {
		elapsed := time.Since(pb.startTime)
		remaining := time.Duration(float64(elapsed)*float64(pb.total)/float64(current)) - elapsed
		if remaining > 0 {
			eta = " ETA: " + units.HumanDuration(remaining)
		}
	}

	fmt.Fprintf(pb.w, "\r%s [%s] %.1f%% (%d/%d)%s\x1b[K", pb.description, bar, percentage, current, pb.total, eta)
}

// ScanProgress tracks a directory scan file by file.
type ScanProgress struct {
	mu sync.Mutex
	w  io.Writer

	TotalFiles     int
	ProcessedFiles int
	Skipped        int
	Unrecognised   int
	ErrorCount     int
	EntityCounts   map[string]int
	StartTime      time.Time
	CurrentFile    string
}

// NewScanProgress creates a new scan progress tracker
func NewScanProgress(w io.Writer) *ScanProgress {
	return &ScanProgress{
		w:            w,
		EntityCounts: make(map[string]int),
		StartTime:    time.Now(),
	}
}

// SetTotalFiles sets the total number of files to process
func (sp *ScanProgress) SetTotalFiles(total int) {
	sp.mu.Lock()
	sp.TotalFiles = total
	sp.mu.Unlock()
}

// Record notes one finished file. kinds lists the entity kinds it produced;
// failed and unrecognised files produce none.
func (sp *ScanProgress) Record(filename string, kinds []string, failed bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.CurrentFile = filename
	sp.ProcessedFiles++
	switch {
	case failed:
		sp.ErrorCount++
	case len(kinds) == 0:
		sp.Unrecognised++
	}
	for _, k := range kinds {
		sp.EntityCounts[k]++
	}
	sp.show()
}

func (sp *ScanProgress) show() {
	if sp.TotalFiles <= 0 {
		return
	}

	percentage := float64(sp.ProcessedFiles) / float64(sp.TotalFiles) * 100
	elapsed := time.Since(sp.StartTime)

	var eta string
	if sp.ProcessedFiles > 0 && sp.ProcessedFiles < sp.TotalFiles {
		avg := elapsed / time.Duration(sp.ProcessedFiles)
		eta = " ETA: " + units.HumanDuration(time.Duration(sp.TotalFiles-sp.ProcessedFiles)*avg)
	}

	currentFile := sp.CurrentFile
	if len(currentFile) > 40 {
		currentFile = "..." + currentFile[len(currentFile)-37:]
	}

	fmt.Fprintf(sp.w, "\rProgress: %.1f%% (%d/%d) | %s%s\x1b[K", percentage, sp.ProcessedFiles, sp.TotalFiles, currentFile, eta)
}

// ShowFinalStats writes the scan summary.
func (sp *ScanProgress) ShowFinalStats() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	elapsed := time.Since(sp.StartTime)

	if sp.TotalFiles > 0 {
		fmt.Fprintln(sp.w)
	}
	fmt.Fprintln(sp.w, "=== Scan Results ===")
	fmt.Fprintf(sp.w, "Files processed: %d\n", sp.ProcessedFiles)
	for _, k := range []string{"base", "split", "dex_metadata", "module"} {
		if n := sp.EntityCounts[k]; n > 0 {
			fmt.Fprintf(sp.w, "  %s entities: %d\n", k, n)
		}
	}
	if sp.Unrecognised > 0 {
		fmt.Fprintf(sp.w, "Unrecognised files: %d\n", sp.Unrecognised)
	}
	if sp.Skipped > 0 {
		fmt.Fprintf(sp.w, "Skipped files: %d\n", sp.Skipped)
	}
	if sp.ErrorCount > 0 {
		fmt.Fprintf(sp.w, "Errors: %d\n", sp.ErrorCount)
	}

	fmt.Fprintf(sp.w, "Total time: %v\n", elapsed.Round(time.Millisecond))
	if sp.ProcessedFiles > 0 {
		avgTime := elapsed / time.Duration(sp.ProcessedFiles)
		fmt.Fprintf(sp.w, "Average time per file: %v\n", avgTime.Round(time.Millisecond))
	}
}
