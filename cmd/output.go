package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/repo"
)

// entityView is the serialised form of one entity.
type entityView struct {
	Kind    models.EntityKind `json:"kind" yaml:"kind"`
	File    string            `json:"file" yaml:"file"`
	Ref     string            `json:"ref" yaml:"ref"`
	Size    int64             `json:"size" yaml:"size"`
	Details models.AppEntity  `json:"details" yaml:"details"`
}

// inputView is the serialised outcome for one input.
type inputView struct {
	Source   string               `json:"source" yaml:"source"`
	Type     models.ContainerType `json:"type" yaml:"type"`
	Error    string               `json:"error,omitempty" yaml:"error,omitempty"`
	Entities []entityView         `json:"entities" yaml:"entities"`
}

func viewEntities(entities []models.AppEntity) []entityView {
	out := make([]entityView, 0, len(entities))
	for _, e := range entities {
		v := entityView{Kind: e.Kind(), File: e.Name(), Details: e}
		if ref := e.Ref(); ref != nil {
			v.Ref = ref.String()
			v.Size = ref.Size()
		}
		out = append(out, v)
	}
	return out
}

func viewReports(reports []repo.Report) []inputView {
	out := make([]inputView, 0, len(reports))
	for _, r := range reports {
		v := inputView{Source: r.Ref.String(), Type: r.Type, Entities: viewEntities(r.Entities)}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// writeStructured encodes v as json or yaml. It returns false for text.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "", "text":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}

// writeEntityTable prints entities as an aligned table.
func writeEntityTable(w io.Writer, entities []models.AppEntity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPACKAGE\tNAME\tVERSION\tSDK\tARCH\tSIZE\tSOURCE")
	for _, e := range entities {
		var version, sdk, arch string
		switch v := e.(type) {
		case *models.BaseEntity:
			version = fmt.Sprintf("%s (%d)", v.VersionName, v.VersionCode)
			sdk = sdkRange(v.MinSDK, v.TargetSDK)
			arch = string(v.Arch)
		case *models.SplitEntity:
			sdk = sdkRange(v.MinSDK, v.TargetSDK)
			arch = string(v.Arch)
			if v.Metadata.Description != "" {
				version = v.Metadata.Description
			}
		case *models.DexMetadataEntity:
			sdk = sdkRange(v.MinSDK, v.TargetSDK)
		case *models.ModuleEntity:
			version = fmt.Sprintf("%s (%d)", v.Version, v.VersionCode)
		}

		size := "-"
		if ref := e.Ref(); ref != nil {
			if n := ref.Size(); n >= 0 {
				size = units.HumanSize(float64(n))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Kind(), e.PackageName(), e.Name(), dash(version), dash(sdk), dash(arch), size, e.Source())
	}
	return tw.Flush()
}

func sdkRange(minSDK, targetSDK string) string {
	if minSDK == "" && targetSDK == "" {
		return ""
	}
	return dash(minSDK) + "/" + dash(targetSDK)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
