package analyser

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"golang.org/x/sync/errgroup"

	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

const modulePropLimit = 1 << 20

// ModuleStrategy reads root module archives described by module.prop.
type ModuleStrategy struct{}

func (ModuleStrategy) Name() string { return "module" }

func (ModuleStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		m := parseModuleProp(opts, zr, ref, extra.DataType)
		if m == nil {
			return nil, nil
		}
		return []models.AppEntity{m}, nil
	})
}

// parseModuleProp returns nil when the archive is not a usable module.
func parseModuleProp(opts Options, zr *archive.Reader, ref models.DataRef, source models.ContainerType) *models.ModuleEntity {
	log := opts.logger().WithField("source", ref.String())

	f := zr.Lookup(moduleProp)
	if f == nil {
		f = zr.Lookup(commonModuleProp)
	}
	if f == nil {
		log.Warn("no module.prop found")
		return nil
	}
	data, err := archive.ReadFile(f, modulePropLimit)
	if err != nil {
		log.Warn("cannot read %s: %v", f.Name, err)
		return nil
	}

	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(bytes.TrimPrefix(data, utf8BOM))
	if err != nil {
		log.Warn("malformed %s: %v", f.Name, err)
		return nil
	}

	id := p.GetString("id", "")
	name := p.GetString("name", "")
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
		log.Warn("incomplete %s: id=%q name=%q", f.Name, id, name)
		return nil
	}

	code, err := strconv.ParseInt(strings.TrimSpace(p.GetString("versionCode", "-1")), 10, 64)
	if err != nil {
		code = -1
	}
	return &models.ModuleEntity{
		Common:      models.Common{Package: id, Data: ref, SourceType: source},
		ID:          id,
		ModuleName:  name,
		Version:     p.GetString("version", ""),
		VersionCode: code,
		Author:      p.GetString("author", ""),
		Description: p.GetString("description", ""),
	}
}

// MixedStrategy runs the module reader and App over the same archive at the
// same time. Neither branch cancels the other; module results come first.
type MixedStrategy struct {
	App Strategy
}

func (s MixedStrategy) Name() string { return "module+" + s.App.Name() }

func (s MixedStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		var (
			g                 errgroup.Group
			modules, apps     []models.AppEntity
			moduleErr, appErr error
		)
		g.Go(func() error {
			modules, moduleErr = ModuleStrategy{}.Analyze(ctx, opts, ref, zr, extra)
			return nil
		})
		g.Go(func() error {
			apps, appErr = s.App.Analyze(ctx, opts, ref, zr, extra)
			return nil
		})
		_ = g.Wait()

		log := opts.logger().WithField("source", ref.String())
		if moduleErr != nil {
			log.Warn("module branch failed: %v", moduleErr)
		}
		if appErr != nil {
			log.Warn("%s branch failed: %v", s.App.Name(), appErr)
		}
		if moduleErr != nil && appErr != nil {
			return nil, errors.Join(moduleErr, appErr)
		}
		return append(modules, apps...), nil
	})
}
