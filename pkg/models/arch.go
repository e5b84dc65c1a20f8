package models

import "strings"

// Architecture is a native ABI.
type Architecture string

const (
	ArchUnknown Architecture = "unknown"
	ArchNone    Architecture = "none"
	ArchARM     Architecture = "armeabi"
	ArchARMv7   Architecture = "armeabi-v7a"
	ArchARM64   Architecture = "arm64-v8a"
	ArchX86     Architecture = "x86"
	ArchX86_64  Architecture = "x86_64"
	ArchMIPS    Architecture = "mips"
	ArchMIPS64  Architecture = "mips64"
	ArchRISCV64 Architecture = "riscv64"
)

var knownArchs = []Architecture{ArchARM, ArchARMv7, ArchARM64, ArchX86, ArchX86_64, ArchMIPS, ArchMIPS64, ArchRISCV64}

// ArchitectureFromABI maps an ABI directory name, accepting the underscore
// spelling used in split names (arm64_v8a). Unknown names map to ArchUnknown.
func ArchitectureFromABI(abi string) Architecture {
	abi = strings.ToLower(strings.TrimSpace(abi))
	for _, a := range knownArchs {
		if abi == string(a) {
			return a
		}
	}
	dashed := strings.ReplaceAll(abi, "_", "-")
	for _, a := range knownArchs {
		if dashed == strings.ReplaceAll(string(a), "_", "-") {
			return a
		}
	}
	return ArchUnknown
}

// IsARM reports whether a belongs to the ARM family.
func (a Architecture) IsARM() bool {
	return a == ArchARM || a == ArchARMv7 || a == ArchARM64
}

// IsX86 reports whether a belongs to the x86 family.
func (a Architecture) IsX86() bool {
	return a == ArchX86 || a == ArchX86_64
}

// Known reports whether a is a concrete ABI.
func (a Architecture) Known() bool {
	for _, k := range knownArchs {
		if a == k {
			return true
		}
	}
	return false
}

// SplitType classifies what a split APK provides.
type SplitType string

const (
	SplitTypeArchitecture SplitType = "ARCHITECTURE"
	SplitTypeLanguage     SplitType = "LANGUAGE"
	SplitTypeDensity      SplitType = "DENSITY"
	SplitTypeFeature      SplitType = "FEATURE"
)

// SplitFilter names the device property a split is selected by.
type SplitFilter string

const (
	FilterNone     SplitFilter = "NONE"
	FilterABI      SplitFilter = "ABI"
	FilterDensity  SplitFilter = "DENSITY"
	FilterLanguage SplitFilter = "LANGUAGE"
)

// SplitMetadata is what the split name says about the split.
type SplitMetadata struct {
	Type        SplitType   `json:"type" yaml:"type"`
	Filter      SplitFilter `json:"filter" yaml:"filter"`
	ConfigValue string      `json:"config_value,omitempty" yaml:"config_value,omitempty"`
	// Description is a human readable form of ConfigValue, e.g. "French" for "fr".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
