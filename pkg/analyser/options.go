// Package analyser classifies installable archives and turns them into
// app entities.
//
// A typical run classifies a reference and dispatches it:
//
//	d := analyser.NewDispatcher(opts)
//	entities, err := d.Analyze(ctx, &models.FileRef{Path: path}, analyser.Extra{CacheDir: dir})
//	defer models.Release(entities)
package analyser

import (
	"runtime"

	"github.com/huanfeng/pkgscope/internal/metrics"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

// Options is the analysis configuration shared by every strategy.
type Options struct {
	// Archs is the device ABI list, most preferred first.
	Archs         []models.Architecture
	IconSize      uint
	IconDensity   uint16
	SignatureHash bool
	ManifestLimit int64
	// Workers bounds how many embedded APKs are parsed at once.
	Workers int

	Logger  utils.Logger
	Metrics *metrics.Recorder
}

// Extra is the per-call context.
type Extra struct {
	// CacheDir receives extracted APKs.
	CacheDir           string
	ModuleFlashEnabled bool
	// DataType is the container type if already known. ContainerNone
	// makes Dispatcher.Analyze classify first.
	DataType models.ContainerType
}

func (o Options) logger() utils.Logger {
	if o.Logger == nil {
		return utils.NopLogger()
	}
	return o.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) apk() apk.Options {
	archs := o.Archs
	if len(archs) == 0 {
		archs = apk.HostArchitectures()
	}
	return apk.Options{
		Archs:         archs,
		IconSize:      o.IconSize,
		IconDensity:   o.IconDensity,
		SignatureHash: o.SignatureHash,
		ManifestLimit: o.ManifestLimit,
		Logger:        o.Logger,
	}
}
