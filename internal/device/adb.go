// Package device reads the properties of connected Android devices through
// adb, most importantly the ABI list used to pick native code.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// ErrNoDevice is returned when adb reports no usable device.
var ErrNoDevice = errors.New("no device connected")

// Runner executes adb with args and returns its standard output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// Device is one entry of `adb devices -l`, enriched with properties when
// the device is online.
type Device struct {
	Serial     string                `json:"serial" yaml:"serial"`
	State      string                `json:"state" yaml:"state"`
	Model      string                `json:"model,omitempty" yaml:"model,omitempty"`
	Product    string                `json:"product,omitempty" yaml:"product,omitempty"`
	AndroidAPI int                   `json:"android_api,omitempty" yaml:"android_api,omitempty"`
	ABIs       []models.Architecture `json:"abis,omitempty" yaml:"abis,omitempty"`
}

// Online reports whether adb can talk to the device.
func (d Device) Online() bool {
	return d.State == "device"
}

// ADB talks to devices through the adb binary.
type ADB struct {
	run Runner
}

// NewADB uses the adb binary at path, or "adb" from PATH when empty.
func NewADB(path string) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{run: func(ctx context.Context, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, path, args...).Output()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
				return nil, fmt.Errorf("adb %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
			}
			return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
		}
		return out, nil
	}}
}

// NewADBWithRunner is NewADB with a custom command runner.
func NewADBWithRunner(run Runner) *ADB {
	return &ADB{run: run}
}

// Devices lists attached devices without querying their properties.
func (a *ADB) Devices(ctx context.Context) ([]Device, error) {
	out, err := a.run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(string(out)), nil
}

func parseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		d := Device{Serial: parts[0], State: parts[1]}
		for _, part := range parts[2:] {
			key, value, ok := strings.Cut(part, ":")
			if !ok {
				continue
			}
			switch key {
			case "model":
				d.Model = value
			case "product":
				d.Product = value
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// Describe fills the API level and ABI list of an online device.
func (a *ADB) Describe(ctx context.Context, d Device) (Device, error) {
	if !d.Online() {
		return d, fmt.Errorf("device %s is %s", d.Serial, d.State)
	}
	if sdk, err := a.prop(ctx, d.Serial, "ro.build.version.sdk"); err == nil {
		d.AndroidAPI, _ = strconv.Atoi(sdk)
	}
	abis, err := a.ABIs(ctx, d.Serial)
	if err != nil {
		return d, err
	}
	d.ABIs = abis
	return d, nil
}

// ABIs returns the device's ABI list, most preferred first. Devices older
// than Lollipop only report abi and abi2.
func (a *ADB) ABIs(ctx context.Context, serial string) ([]models.Architecture, error) {
	list, err := a.prop(ctx, serial, "ro.product.cpu.abilist")
	if err != nil {
		return nil, err
	}
	names := strings.Split(list, ",")
	if list == "" {
		names = nil
		for _, p := range []string{"ro.product.cpu.abi", "ro.product.cpu.abi2"} {
			if v, err := a.prop(ctx, serial, p); err == nil && v != "" {
				names = append(names, v)
			}
		}
	}

	var abis []models.Architecture
	for _, n := range names {
		if arch := models.ArchitectureFromABI(n); arch.Known() {
			abis = append(abis, arch)
		}
	}
	if len(abis) == 0 {
		return nil, fmt.Errorf("device %s reports no known ABI", serial)
	}
	return abis, nil
}

// ArchProvider returns the ABI list of serial, or of the only online device
// when serial is empty.
func (a *ADB) ArchProvider(ctx context.Context, serial string) (apk.StaticArchProvider, error) {
	if serial == "" {
		devices, err := a.Devices(ctx)
		if err != nil {
			return nil, err
		}
		var online []string
		for _, d := range devices {
			if d.Online() {
				online = append(online, d.Serial)
			}
		}
		switch len(online) {
		case 0:
			return nil, ErrNoDevice
		case 1:
			serial = online[0]
		default:
			return nil, fmt.Errorf("%d devices connected, choose one of %s", len(online), strings.Join(online, ", "))
		}
	}
	abis, err := a.ABIs(ctx, serial)
	if err != nil {
		return nil, err
	}
	return apk.StaticArchProvider(abis), nil
}

func (a *ADB) prop(ctx context.Context, serial, name string) (string, error) {
	out, err := a.run(ctx, "-s", serial, "shell", "getprop", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
