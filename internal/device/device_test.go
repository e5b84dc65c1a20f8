package device

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
)

const devicesOutput = `List of devices attached
* daemon started successfully
emulator-5554          device product:sdk_gphone64_arm64 model:sdk_gphone64_arm64 device:emu64a transport_id:1
0123456789ABCDEF       unauthorized usb:1-1 transport_id:2
legacy01               device product:hammerhead model:Nexus_5 device:hammerhead transport_id:3

`

// fakeADB answers getprop queries from props keyed by "serial/prop".
func fakeADB(devices string, props map[string]string) Runner {
	return func(ctx context.Context, args ...string) ([]byte, error) {
		if len(args) == 2 && args[0] == "devices" {
			return []byte(devices), nil
		}
		if len(args) == 5 && args[0] == "-s" && args[3] == "getprop" {
			v, ok := props[args[1]+"/"+args[4]]
			if !ok {
				return []byte("\n"), nil
			}
			return []byte(v + "\n"), nil
		}
		return nil, errors.New("unexpected adb call: " + strings.Join(args, " "))
	}
}

func TestDevices(t *testing.T) {
	adb := NewADBWithRunner(fakeADB(devicesOutput, nil))

	devices, err := adb.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, Device{Serial: "emulator-5554", State: "device", Model: "sdk_gphone64_arm64", Product: "sdk_gphone64_arm64"}, devices[0])
	assert.Equal(t, "unauthorized", devices[1].State)
	assert.False(t, devices[1].Online())
	assert.Equal(t, "Nexus_5", devices[2].Model)
}

func TestABIs(t *testing.T) {
	adb := NewADBWithRunner(fakeADB(devicesOutput, map[string]string{
		"emulator-5554/ro.product.cpu.abilist": "arm64-v8a,armeabi-v7a,armeabi",
		"legacy01/ro.product.cpu.abi":          "armeabi-v7a",
		"legacy01/ro.product.cpu.abi2":         "armeabi",
		"odd/ro.product.cpu.abilist":           "sparc",
	}))
	ctx := context.Background()

	abis, err := adb.ABIs(ctx, "emulator-5554")
	require.NoError(t, err)
	assert.Equal(t, []models.Architecture{models.ArchARM64, models.ArchARMv7, models.ArchARM}, abis)

	abis, err = adb.ABIs(ctx, "legacy01")
	require.NoError(t, err)
	assert.Equal(t, []models.Architecture{models.ArchARMv7, models.ArchARM}, abis)

	_, err = adb.ABIs(ctx, "odd")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	adb := NewADBWithRunner(fakeADB(devicesOutput, map[string]string{
		"emulator-5554/ro.product.cpu.abilist": "arm64-v8a",
		"emulator-5554/ro.build.version.sdk":   "34",
	}))
	ctx := context.Background()

	d, err := adb.Describe(ctx, Device{Serial: "emulator-5554", State: "device"})
	require.NoError(t, err)
	assert.Equal(t, 34, d.AndroidAPI)
	assert.Equal(t, []models.Architecture{models.ArchARM64}, d.ABIs)

	_, err = adb.Describe(ctx, Device{Serial: "x", State: "offline"})
	assert.Error(t, err)
}

func TestArchProvider(t *testing.T) {
	props := map[string]string{
		"emulator-5554/ro.product.cpu.abilist": "x86_64,arm64-v8a",
		"legacy01/ro.product.cpu.abilist":      "armeabi-v7a",
	}
	ctx := context.Background()

	t.Run("explicit serial", func(t *testing.T) {
		p, err := NewADBWithRunner(fakeADB(devicesOutput, props)).ArchProvider(ctx, "legacy01")
		require.NoError(t, err)
		assert.Equal(t, apk.StaticArchProvider{models.ArchARMv7}, p)
	})

	t.Run("several online", func(t *testing.T) {
		_, err := NewADBWithRunner(fakeADB(devicesOutput, props)).ArchProvider(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "emulator-5554")
	})

	t.Run("single online", func(t *testing.T) {
		out := "List of devices attached\nemulator-5554 device\nabc offline\n"
		p, err := NewADBWithRunner(fakeADB(out, props)).ArchProvider(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []models.Architecture{models.ArchX86_64, models.ArchARM64}, p.SupportedArchitectures())
	})

	t.Run("none", func(t *testing.T) {
		_, err := NewADBWithRunner(fakeADB("List of devices attached\n", props)).ArchProvider(ctx, "")
		assert.ErrorIs(t, err, ErrNoDevice)
	})
}

func TestManagerRun(t *testing.T) {
	var running, peak int32
	mgr := NewManager[int](WithWorkerLimit[int](2))

	serials := []string{"a", "bb", "ccc", "dddd", "fail"}
	results := mgr.Run(context.Background(), serials, func(ctx context.Context, serial string) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&running, -1)
		if serial == "fail" {
			return 0, errors.New("boom")
		}
		return len(serial), nil
	})

	require.Len(t, results, len(serials))
	for i, r := range results[:4] {
		assert.Equal(t, serials[i], r.Serial)
		assert.Equal(t, i+1, r.Value)
		assert.NoError(t, r.Err)
	}
	assert.EqualError(t, results[4].Err, "boom")
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestManagerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewManager[string]().Run(ctx, []string{"a", "b"}, func(ctx context.Context, serial string) (string, error) {
		return serial, nil
	})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
