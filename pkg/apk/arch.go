package apk

import (
	"runtime"
	"strings"

	"github.com/huanfeng/pkgscope/pkg/models"
)

// ArchProvider reports the ABIs a device can run, most preferred first.
type ArchProvider interface {
	SupportedArchitectures() []models.Architecture
}

// StaticArchProvider is a fixed ABI list.
type StaticArchProvider []models.Architecture

func (p StaticArchProvider) SupportedArchitectures() []models.Architecture {
	return p
}

// HostArchitectures returns the ABI list of an Android device with the
// same CPU as the running host.
func HostArchitectures() []models.Architecture {
	switch runtime.GOARCH {
	case "arm64":
		return []models.Architecture{models.ArchARM64, models.ArchARMv7, models.ArchARM}
	case "arm":
		return []models.Architecture{models.ArchARMv7, models.ArchARM}
	case "amd64":
		return []models.Architecture{models.ArchX86_64, models.ArchX86}
	case "386":
		return []models.Architecture{models.ArchX86}
	case "riscv64":
		return []models.Architecture{models.ArchRISCV64}
	case "mips64", "mips64le":
		return []models.Architecture{models.ArchMIPS64, models.ArchMIPS}
	case "mips", "mipsle":
		return []models.Architecture{models.ArchMIPS}
	}
	return []models.Architecture{models.ArchARM64, models.ArchARMv7, models.ArchARM}
}

// NativeABIs lists the lib/<abi>/ directories present, in first-seen order.
func NativeABIs(names []string) []models.Architecture {
	seen := make(map[models.Architecture]bool)
	var abis []models.Architecture
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, "lib/")
		if !ok {
			continue
		}
		dir, _, ok := strings.Cut(rest, "/")
		if !ok || dir == "" {
			continue
		}
		a := models.ArchitectureFromABI(dir)
		if !a.Known() || seen[a] {
			continue
		}
		seen[a] = true
		abis = append(abis, a)
	}
	return abis
}

// BestArchitecture picks the ABI the package would run as on a device
// supporting device. An APK without native code is ArchNone; an APK whose
// libraries the device cannot load is ArchUnknown.
func BestArchitecture(abis, device []models.Architecture) models.Architecture {
	if len(abis) == 0 {
		return models.ArchNone
	}
	has := make(map[models.Architecture]bool, len(abis))
	for _, a := range abis {
		has[a] = true
	}
	for _, a := range device {
		if has[a] {
			return a
		}
	}

	// 64-bit only devices can still run 32-bit code through a compat layer
	if len(device) > 0 {
		switch {
		case device[0].IsARM():
			if has[models.ArchARMv7] {
				return models.ArchARMv7
			}
			if has[models.ArchARM] {
				return models.ArchARM
			}
		case device[0].IsX86():
			if has[models.ArchX86] {
				return models.ArchX86
			}
		}
	}
	return models.ArchUnknown
}
