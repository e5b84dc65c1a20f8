package apk

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/huanfeng/pkgscope/pkg/utils"
)

// NewOpenerChain creates an empty chain
func NewOpenerChain(logger utils.Logger) *OpenerChain {
	if logger == nil {
		logger = utils.NopLogger()
	}

	return &OpenerChain{
		openers: make([]SourceOpener, 0, 2),
		logger:  logger,
	}
}

// DefaultOpenerChain is the strict zip reader backed by the tolerant one.
func DefaultOpenerChain(logger utils.Logger) *OpenerChain {
	c := NewOpenerChain(logger)
	c.AddOpener(ZipOpener{})
	c.AddOpener(TolerantOpener{})
	return c
}

// AddOpener adds an opener to the chain
func (oc *OpenerChain) AddOpener(o SourceOpener) {
	oc.openers = append(oc.openers, o)
	sort.SliceStable(oc.openers, func(i, j int) bool {
		return oc.openers[i].Info().Priority < oc.openers[j].Info().Priority
	})
}

// Open returns the first source any opener can produce for path
func (oc *OpenerChain) Open(path string) (*OpenResult, error) {
	if len(oc.openers) == 0 {
		return nil, fmt.Errorf("no APK readers configured")
	}

	var errs []error
	var messages []string

	for _, o := range oc.openers {
		info := o.Info()
		if !info.Available {
			oc.logger.Debug("skipping unavailable reader %s", info.Name)
			continue
		}

		start := time.Now()
		src, err := o.Open(path)
		if err != nil {
			oc.logger.Debug("reader %s failed on %s: %v", info.Name, path, err)
			errs = append(errs, fmt.Errorf("%s: %w", info.Name, err))
			messages = append(messages, fmt.Sprintf("%s: %v", info.Name, err))
			continue
		}

		if len(errs) > 0 {
			oc.logger.Info("opened %s with fallback reader %s", path, info.Name)
		}
		return &OpenResult{
			Source:   src,
			Opener:   info.Name,
			Duration: time.Since(start),
			Errors:   messages,
		}, nil
	}

	return nil, fmt.Errorf("no reader could open %s: %w", path, errors.Join(errs...))
}

// Openers returns information about all configured openers
func (oc *OpenerChain) Openers() []OpenerInfo {
	infos := make([]OpenerInfo, 0, len(oc.openers))
	for _, o := range oc.openers {
		infos = append(infos, o.Info())
	}
	return infos
}
