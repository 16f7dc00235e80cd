package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"adtkit/pkg/netkit"
)

const simDeviceID = "emulator-5554"

// simDevice stands in for a connected phone in -simulate runs. Proxy state
// lives in a netkit.MemoryDevice; adb invocations are answered from a
// small script.
type simDevice struct {
	*netkit.MemoryDevice
	id string

	mu       sync.Mutex
	calls    []string
	opened   int
	packages map[string]bool
}

func newSimDevice() *simDevice {
	mem := netkit.NewMemoryDevice(30)
	mem.AddNetwork(netkit.NetworkRecord{ID: 0, SSID: "Home", ProxySetting: netkit.ProxyNone})
	mem.AddNetwork(netkit.NetworkRecord{ID: 1, SSID: "Office", ProxySetting: netkit.ProxyNone})
	mem.Connect(1, "192.168.1.23")
	return &simDevice{
		MemoryDevice: mem,
		id:           simDeviceID,
		packages:     map[string]bool{"com.example.app": true},
	}
}

func (d *simDevice) SetWifiEnabled(ctx context.Context, on bool) error {
	d.SetWifi(on)
	return nil
}

func (d *simDevice) OpenWifiSettings(ctx context.Context) error {
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return nil
}

// runAdb answers the adb invocations the toolkit issues.
func (d *simDevice) runAdb(ctx context.Context, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	d.mu.Lock()
	d.calls = append(d.calls, cmd)
	d.mu.Unlock()

	if cmd == "devices -l" {
		return "List of devices attached\n" + d.id + "          device product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64x transport_id:1\n\n", nil
	}

	prefix := "-s " + d.id + " "
	if !strings.HasPrefix(cmd, prefix) {
		return "", fmt.Errorf("adb %s: device not found", cmd)
	}
	rest := strings.TrimPrefix(cmd, prefix)

	switch {
	case rest == "shell getprop":
		return "[ro.product.model]: [sdk_gphone64_x86_64]\n[ro.product.brand]: [google]\n[ro.product.manufacturer]: [Google]\n" +
			"[ro.build.version.release]: [11]\n[ro.build.version.sdk]: [30]\n[ro.product.cpu.abi]: [x86_64]\n[ro.serialno]: [EMULATOR30X1]\n", nil
	case rest == "shell ip -4 addr show wlan0":
		state, _ := d.ConnectionInfo(ctx)
		if !state.Enabled {
			return "", nil
		}
		return "    inet " + state.IP() + "/24 brd 192.168.1.255 scope global wlan0\n", nil
	case strings.HasPrefix(rest, "shell pm clear "):
		if !d.hasPackage(strings.TrimPrefix(rest, "shell pm clear ")) {
			return "Failed\n", nil
		}
		return "Success\n", nil
	case strings.HasPrefix(rest, "shell am force-stop "):
		return "", nil
	case strings.HasPrefix(rest, "shell monkey -p "):
		pkg := strings.Fields(strings.TrimPrefix(rest, "shell monkey -p "))[0]
		if !d.hasPackage(pkg) {
			return "** No activities found to run, monkey aborted.\n", nil
		}
		return "Events injected: 1\n", nil
	case strings.HasPrefix(rest, "shell am start -a "):
		return "Starting: Intent { act=" + strings.TrimPrefix(rest, "shell am start -a ") + " }\n", nil
	case rest == "tcpip 5555":
		return "restarting in TCP mode port: 5555\n", nil
	case rest == "usb":
		return "restarting in USB mode\n", nil
	case strings.HasPrefix(rest, "reverse "):
		return "", nil
	case strings.HasPrefix(rest, "push "):
		return "1 file pushed, 0 skipped.\n", nil
	}
	return "", fmt.Errorf("adb %s: not available in simulate mode", cmd)
}

func (d *simDevice) hasPackage(pkg string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.packages[pkg]
}
