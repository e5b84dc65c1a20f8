package models

import (
	"fmt"
	"strings"
)

// ContainerType is the structural type assigned to an input archive.
type ContainerType int

const (
	ContainerNone ContainerType = iota
	ContainerAPK
	ContainerAPKS
	ContainerAPKM
	ContainerXAPK
	ContainerMultiAPKZip
	ContainerModuleZip
	ContainerMixedModuleZip
	ContainerMixedModuleAPK
)

var containerNames = [...]string{
	ContainerNone:           "NONE",
	ContainerAPK:            "APK",
	ContainerAPKS:           "APKS",
	ContainerAPKM:           "APKM",
	ContainerXAPK:           "XAPK",
	ContainerMultiAPKZip:    "MULTI_APK_ZIP",
	ContainerModuleZip:      "MODULE_ZIP",
	ContainerMixedModuleZip: "MIXED_MODULE_ZIP",
	ContainerMixedModuleAPK: "MIXED_MODULE_APK",
}

// AllContainerTypes lists every tag in declaration order.
func AllContainerTypes() []ContainerType {
	out := make([]ContainerType, len(containerNames))
	for i := range containerNames {
		out[i] = ContainerType(i)
	}
	return out
}

func (t ContainerType) String() string {
	if t < 0 || int(t) >= len(containerNames) {
		return fmt.Sprintf("ContainerType(%d)", int(t))
	}
	return containerNames[t]
}

// ParseContainerType is the inverse of String. Matching ignores case.
func ParseContainerType(s string) (ContainerType, error) {
	s = strings.TrimSpace(s)
	for i, name := range containerNames {
		if strings.EqualFold(name, s) {
			return ContainerType(i), nil
		}
	}
	return ContainerNone, fmt.Errorf("unknown container type %q", s)
}

func (t ContainerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ContainerType) UnmarshalText(b []byte) error {
	v, err := ParseContainerType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IsMixed reports whether the type bundles a module with installable APKs.
func (t ContainerType) IsMixed() bool {
	return t == ContainerMixedModuleAPK || t == ContainerMixedModuleZip
}
