package analyser

import (
	"context"
	"time"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// DefaultStrategies is the container type to strategy table.
func DefaultStrategies() map[models.ContainerType]Strategy {
	return map[models.ContainerType]Strategy{
		models.ContainerAPK:            SingleApkStrategy{},
		models.ContainerAPKS:           ApksStrategy{},
		models.ContainerAPKM:           ApkmStrategy{},
		models.ContainerXAPK:           XApkStrategy{},
		models.ContainerMultiAPKZip:    MultiApkZipStrategy{},
		models.ContainerModuleZip:      ModuleStrategy{},
		models.ContainerMixedModuleZip: MixedStrategy{App: MultiApkZipStrategy{}},
		models.ContainerMixedModuleAPK: MixedStrategy{App: SingleApkStrategy{}},
	}
}

// Dispatcher picks the strategy for a container type and owns the archive
// handle for the duration of the call.
type Dispatcher struct {
	opts       Options
	strategies map[models.ContainerType]Strategy
}

// NewDispatcher creates a dispatcher over DefaultStrategies.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{opts: opts, strategies: DefaultStrategies()}
}

// Options returns the options strategies are run with.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Strategy returns the strategy registered for t.
func (d *Dispatcher) Strategy(t models.ContainerType) (Strategy, bool) {
	s, ok := d.strategies[t]
	return s, ok
}

// Classify is the package level Classify with logging and metrics.
func (d *Dispatcher) Classify(ctx context.Context, ref models.DataRef, moduleFlash bool) (models.ContainerType, error) {
	t, err := Classify(ctx, ref, moduleFlash)
	if err != nil {
		return t, err
	}
	d.opts.Metrics.RecordClassification(t.String())
	d.opts.logger().Debug("%s classified as %s", ref, t)
	return t, nil
}

// Analyze classifies ref unless extra.DataType is set, then dispatches it.
func (d *Dispatcher) Analyze(ctx context.Context, ref models.DataRef, extra Extra) ([]models.AppEntity, error) {
	if extra.DataType == models.ContainerNone {
		t, err := d.Classify(ctx, ref, extra.ModuleFlashEnabled)
		if err != nil {
			return nil, err
		}
		extra.DataType = t
	}
	return d.Dispatch(ctx, ref, extra.DataType, extra)
}

// Dispatch runs the strategy for t. Unmapped types produce no entities and
// no error. A file reference of any type but APK is opened once here and
// closed when the strategy returns.
func (d *Dispatcher) Dispatch(ctx context.Context, ref models.DataRef, t models.ContainerType, extra Extra) (entities []models.AppEntity, err error) {
	s, ok := d.strategies[t]
	if !ok {
		return nil, nil
	}
	extra.DataType = t

	start := time.Now()
	defer func() {
		d.opts.Metrics.RecordAnalysis(t.String(), err, time.Since(start))
		if err != nil {
			if rerr := models.Release(entities); rerr != nil {
				d.opts.logger().Warn("cleanup after failed analysis of %s: %v", ref, rerr)
			}
			entities = nil
			return
		}
		for _, e := range entities {
			d.opts.Metrics.RecordEntity(e.Kind().String(), t.String())
		}
	}()

	var zr *archive.Reader
	if f, isFile := ref.(*models.FileRef); isFile && t != models.ContainerAPK {
		zr, err = archive.OpenFile(f.Path)
		if err != nil {
			return nil, pkgerrors.NewClassificationError(ref.String(), err)
		}
		defer zr.Close()
	}

	return s.Analyze(ctx, d.opts, ref, zr, extra)
}
