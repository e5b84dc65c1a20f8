package apk

import (
	"io"
	"time"

	"github.com/huanfeng/pkgscope/pkg/utils"
)

// EntrySource exposes the files inside one APK.
type EntrySource interface {
	// Names lists entry names in archive order.
	Names() []string
	// ReadFile returns the whole entry, failing beyond limit bytes.
	ReadFile(name string, limit int64) ([]byte, error)
	io.Closer
}

// SourceOpener turns an APK path into an EntrySource.
type SourceOpener interface {
	Open(path string) (EntrySource, error)
	Info() OpenerInfo
}

// OpenerInfo contains information about an opener
type OpenerInfo struct {
	Name         string
	Version      string
	Capabilities []string
	Available    bool
	Priority     int // Lower number = higher priority
}

// OpenResult is an opened source plus which opener produced it
type OpenResult struct {
	Source   EntrySource
	Opener   string
	Duration time.Duration
	Errors   []string
}

// OpenerChain tries openers in priority order until one succeeds
type OpenerChain struct {
	openers []SourceOpener
	logger  utils.Logger
}
