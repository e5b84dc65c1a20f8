// Package repo analyses batches of packages and whole directories.
package repo

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

// Report is the outcome for one input reference.
type Report struct {
	Ref      models.DataRef
	Type     models.ContainerType
	Entities []models.AppEntity
	Err      error
	Duration time.Duration
}

// Result is the outcome of a batch.
type Result struct {
	// Entities are grouped by package in first-seen order, with split
	// SDK bounds reconciled and duplicate bases removed.
	Entities []models.AppEntity
	Reports  []Report
	Stats    pkgerrors.ErrorStats
}

// Failed returns the reports that ended in an error.
func (r *Result) Failed() []Report {
	var out []Report
	for _, rep := range r.Reports {
		if rep.Err != nil {
			out = append(out, rep)
		}
	}
	return out
}

// Analyser runs the dispatcher over many references.
type Analyser struct {
	dispatcher *analyser.Dispatcher
	logger     utils.Logger
	errors     *pkgerrors.ErrorHandler

	// OnReport, when set, is called after each reference is analysed.
	OnReport func(done, total int, r Report)
}

// NewAnalyser creates a batch analyser over d.
func NewAnalyser(d *analyser.Dispatcher) *Analyser {
	logger := d.Options().Logger
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Analyser{
		dispatcher: d,
		logger:     logger,
		errors:     pkgerrors.NewErrorHandler(logger),
	}
}

// Analyse classifies and dispatches every reference. A failing reference is
// reported and skipped; only cancellation stops the batch.
func (a *Analyser) Analyse(ctx context.Context, refs []models.DataRef, extra analyser.Extra) (*Result, error) {
	a.errors.Reset()
	res := &Result{Reports: make([]Report, 0, len(refs))}

	var raw []models.AppEntity
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			models.Release(raw)
			return nil, err
		}

		rep := a.analyseOne(ctx, ref, extra)
		if rep.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				models.Release(raw)
				return nil, ctxErr
			}
			a.errors.Handle(fmt.Errorf("%s: %w", ref, rep.Err))
		}
		raw = append(raw, rep.Entities...)
		res.Reports = append(res.Reports, rep)
		if a.OnReport != nil {
			a.OnReport(i+1, len(refs), rep)
		}
	}

	res.Entities = a.reconcile(raw)
	res.Stats = a.errors.GetStats()
	return res, nil
}

func (a *Analyser) analyseOne(ctx context.Context, ref models.DataRef, extra analyser.Extra) Report {
	start := time.Now()
	rep := Report{Ref: ref, Type: extra.DataType}

	if rep.Type == models.ContainerNone {
		t, err := a.dispatcher.Classify(ctx, ref, extra.ModuleFlashEnabled)
		if err != nil {
			rep.Err = err
			rep.Duration = time.Since(start)
			return rep
		}
		rep.Type = t
	}
	if rep.Type == models.ContainerNone {
		a.logger.Info("%s is not a recognised package container", ref)
		rep.Duration = time.Since(start)
		return rep
	}

	rep.Entities, rep.Err = a.dispatcher.Dispatch(ctx, ref, rep.Type, extra)
	rep.Duration = time.Since(start)
	return rep
}

type versionKey struct {
	code int64
	name string
}

// reconcile groups entities by package. Within a package that has a base,
// splits and dex metadata take the base's target SDK, and later bases with
// the same version code and name are dropped and released.
func (a *Analyser) reconcile(entities []models.AppEntity) []models.AppEntity {
	var order []string
	groups := make(map[string][]models.AppEntity)
	for _, e := range entities {
		p := e.PackageName()
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], e)
	}

	out := make([]models.AppEntity, 0, len(entities))
	var dropped []models.AppEntity
	for _, p := range order {
		group := groups[p]

		var base *models.BaseEntity
		for _, e := range group {
			if b, ok := e.(*models.BaseEntity); ok {
				base = b
				break
			}
		}
		if base == nil {
			out = append(out, group...)
			continue
		}

		seen := make(map[versionKey]bool)
		for _, e := range group {
			switch v := e.(type) {
			case *models.BaseEntity:
				k := versionKey{v.VersionCode, v.VersionName}
				if seen[k] {
					a.logger.Debug("dropping duplicate %s %d (%s) from %s", p, v.VersionCode, v.VersionName, v.Ref())
					dropped = append(dropped, v)
					continue
				}
				seen[k] = true
			case *models.SplitEntity:
				v.TargetSDK = base.TargetSDK
			case *models.DexMetadataEntity:
				v.TargetSDK = base.TargetSDK
			}
			out = append(out, e)
		}
	}

	if err := releaseUnshared(dropped, out); err != nil {
		a.logger.Warn("cleanup of duplicate packages: %v", err)
	}
	return out
}

// releaseUnshared releases the refs of dropped entities that no kept entity
// still points at.
func releaseUnshared(dropped, kept []models.AppEntity) error {
	if len(dropped) == 0 {
		return nil
	}
	inUse := make(map[models.DataRef]bool, len(kept))
	for _, e := range kept {
		inUse[e.Ref()] = true
		if er, ok := e.Ref().(*models.EntryRef); ok {
			inUse[models.Root(er)] = true
		}
	}
	var release []models.AppEntity
	for _, e := range dropped {
		if !inUse[e.Ref()] {
			release = append(release, e)
		}
	}
	return models.Release(release)
}
