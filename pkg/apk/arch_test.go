package apk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/huanfeng/pkgscope/pkg/models"
)

func TestNativeABIs(t *testing.T) {
	names := []string{
		"AndroidManifest.xml",
		"lib/x86/libfoo.so",
		"lib/arm64-v8a/libfoo.so",
		"lib/x86/libbar.so",
		"lib/unknown-abi/libfoo.so",
		"lib/libstray.so",
		"assets/lib/armeabi/libnot.so",
	}
	assert.Equal(t, []models.Architecture{models.ArchX86, models.ArchARM64}, NativeABIs(names))
	assert.Empty(t, NativeABIs([]string{"classes.dex"}))
}

func TestBestArchitecture(t *testing.T) {
	arm64 := []models.Architecture{models.ArchARM64, models.ArchARMv7, models.ArchARM}
	arm64Only := []models.Architecture{models.ArchARM64}
	x64Only := []models.Architecture{models.ArchX86_64}

	tests := []struct {
		name   string
		abis   []models.Architecture
		device []models.Architecture
		want   models.Architecture
	}{
		{"no native code", nil, arm64, models.ArchNone},
		{"preferred match", []models.Architecture{models.ArchARMv7, models.ArchARM64}, arm64, models.ArchARM64},
		{"second choice", []models.Architecture{models.ArchX86, models.ArchARMv7}, arm64, models.ArchARMv7},
		{"32-bit arm on 64-bit only device", []models.Architecture{models.ArchARM}, arm64Only, models.ArchARM},
		{"32-bit x86 on 64-bit only device", []models.Architecture{models.ArchX86}, x64Only, models.ArchX86},
		{"incompatible", []models.Architecture{models.ArchMIPS}, arm64, models.ArchUnknown},
		{"no device list", []models.Architecture{models.ArchARM64}, nil, models.ArchUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BestArchitecture(tt.abis, tt.device))
		})
	}
}

func TestHostArchitectures(t *testing.T) {
	archs := HostArchitectures()
	assert.NotEmpty(t, archs)
	for _, a := range archs {
		assert.True(t, a.Known(), a)
	}
	assert.Equal(t, archs, StaticArchProvider(archs).SupportedArchitectures())
}
