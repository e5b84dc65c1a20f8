package models

import "path/filepath"

// IndexLayout defines where a scan index lives on disk
type IndexLayout struct {
	RootDir   string
	IconsDir  string // icons/
	IndexFile string // pkgscope_index.json
}

// NewIndexLayout creates a new index layout structure
func NewIndexLayout(rootDir string) *IndexLayout {
	return &IndexLayout{
		RootDir:   rootDir,
		IconsDir:  "icons",
		IndexFile: "pkgscope_index.json",
	}
}

// IndexPath returns the absolute path of the index file.
func (l *IndexLayout) IndexPath() string {
	return filepath.Join(l.RootDir, l.IndexFile)
}

// IconPath returns the path of a package icon relative to RootDir.
func (l *IndexLayout) IconPath(packageID string) string {
	return filepath.Join(l.IconsDir, packageID+".png")
}
