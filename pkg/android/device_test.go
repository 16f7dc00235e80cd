package android

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"adtkit/pkg/netkit"
)

func newTestDevice(shell *fakeShell) *Device {
	return NewDevice(shell, zerolog.Nop())
}

func TestDeviceSDK(t *testing.T) {
	shell := newFakeShell().on("getprop ro.build.version.sdk", "33\n")
	sdk, err := newTestDevice(shell).SDK(context.Background())
	if err != nil {
		t.Fatalf("SDK failed: %v", err)
	}
	if sdk != 33 {
		t.Errorf("Expected 33, got %d", sdk)
	}

	shell.on("getprop ro.build.version.sdk", "\n")
	if _, err := newTestDevice(shell).SDK(context.Background()); err == nil {
		t.Error("Expected error for empty sdk property")
	}
}

func TestDeviceConnectionInfoFallsBackToWlan0(t *testing.T) {
	shell := newFakeShell().
		on("dumpsys wifi", dumpsysEnabled).
		on("ip -4 addr show wlan0", "    inet 192.168.1.23/24 brd 192.168.1.255 scope global wlan0\n")

	state, err := newTestDevice(shell).ConnectionInfo(context.Background())
	if err != nil {
		t.Fatalf("ConnectionInfo failed: %v", err)
	}
	if !state.Enabled || state.NetworkID != 1 {
		t.Errorf("Unexpected state: %+v", state)
	}
	if state.IP() != "192.168.1.23" {
		t.Errorf("Expected 192.168.1.23, got %s", state.IP())
	}
}

func TestDeviceConnectionInfoDisabled(t *testing.T) {
	shell := newFakeShell().on("dumpsys wifi", dumpsysDisabled)
	state, err := newTestDevice(shell).ConnectionInfo(context.Background())
	if err != nil {
		t.Fatalf("ConnectionInfo failed: %v", err)
	}
	if state.Enabled {
		t.Error("Expected disabled state")
	}
	if shell.ran("ip -4 addr show wlan0") {
		t.Error("Expected no address lookup while disabled")
	}
}

func TestDeviceConfiguredNetworksFallback(t *testing.T) {
	shell := newFakeShell().
		on("dumpsys wifi", "Wi-Fi is enabled\n").
		on("cmd wifi list-networks", "Network Id      SSID                         Security type\n2            \"Lab\"                          wpa2-psk\n")

	records, err := newTestDevice(shell).ConfiguredNetworks(context.Background())
	if err != nil {
		t.Fatalf("ConfiguredNetworks failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != 2 {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestDeviceCommandErrors(t *testing.T) {
	shell := newFakeShell().fail("dumpsys wifi", errors.New("device offline"))
	dev := newTestDevice(shell)

	if _, err := dev.WifiEnabled(context.Background()); err == nil {
		t.Error("Expected WifiEnabled error")
	}
	if _, err := dev.ConfiguredNetworks(context.Background()); err == nil {
		t.Error("Expected ConfiguredNetworks error")
	}
}

func TestDeviceRadioCommands(t *testing.T) {
	shell := newFakeShell().
		on("svc wifi disable", "").
		on("svc wifi enable", "").
		on("am start -a android.settings.WIFI_SETTINGS", "Starting: Intent { act=android.settings.WIFI_SETTINGS }\n")
	dev := newTestDevice(shell)
	ctx := context.Background()

	if err := dev.Disconnect(ctx); err != nil {
		t.Errorf("Disconnect failed: %v", err)
	}
	if err := dev.Reconnect(ctx); err != nil {
		t.Errorf("Reconnect failed: %v", err)
	}
	if shell.ran("svc wifi disable") || shell.ran("svc wifi enable") {
		t.Error("Expected disconnect/reconnect to leave the radio alone")
	}
	if err := dev.SetWifiEnabled(ctx, false); err != nil {
		t.Errorf("SetWifiEnabled failed: %v", err)
	}
	if !shell.ran("svc wifi disable") {
		t.Error("Expected svc wifi disable")
	}
	if err := dev.SetWifiEnabled(ctx, true); err != nil {
		t.Errorf("SetWifiEnabled failed: %v", err)
	}
	if err := dev.OpenWifiSettings(ctx); err != nil {
		t.Errorf("OpenWifiSettings failed: %v", err)
	}
}

func TestDeviceOpenWifiSettingsFailure(t *testing.T) {
	shell := newFakeShell().on("am start -a android.settings.WIFI_SETTINGS", "Error: Activity not started, unable to resolve Intent\n")
	if err := newTestDevice(shell).OpenWifiSettings(context.Background()); err == nil {
		t.Error("Expected error when the activity cannot be resolved")
	}
}

func TestDeviceCapabilitySelection(t *testing.T) {
	tests := []struct {
		sdk  string
		want string
	}{
		{"19", "unsupported"},
		{"21", "settings-global"},
		{"34", "settings-global"},
	}

	for _, tt := range tests {
		shell := newFakeShell().on("getprop ro.build.version.sdk", tt.sdk)
		c, err := newTestDevice(shell).Capability(context.Background())
		if err != nil {
			t.Fatalf("Capability failed: %v", err)
		}
		if c.Name() != tt.want {
			t.Errorf("sdk %s: expected %s, got %s", tt.sdk, tt.want, c.Name())
		}
	}
}

// dumpsysNoRecordProxy is dumpsysEnabled with the active network's own
// proxy removed.
var dumpsysNoRecordProxy = strings.Replace(dumpsysEnabled,
	"Proxy settings: STATIC\nHTTP proxy: [10.0.0.1] 8888\n", "Proxy settings: NONE\n", 1)

func newAdbController(t *testing.T, shell *fakeShell) *netkit.Controller {
	t.Helper()
	dev := newTestDevice(shell)
	capability, err := dev.Capability(context.Background())
	if err != nil {
		t.Fatalf("Capability failed: %v", err)
	}
	return netkit.NewController(dev, dev, capability)
}

// TestControllerOverAdb drives the full enable/disable cycle against the
// scripted device.
func TestControllerOverAdb(t *testing.T) {
	shell := newFakeShell().
		on("getprop ro.build.version.sdk", "30").
		on("dumpsys wifi", dumpsysNoRecordProxy).
		on("ip -4 addr show wlan0", "inet 192.168.1.23/24").
		on("settings get global http_proxy", "null")
	ctl := newAdbController(t, shell)
	ctx := context.Background()

	if got := ctl.SetEnabled(ctx, true, netkit.ProxyInfo{Host: "192.168.1.5", Port: 8080}); got != netkit.OutcomeApplied {
		t.Fatalf("Expected applied, got %s", got)
	}
	if !shell.ran("settings put global http_proxy 192.168.1.5:8080") {
		t.Error("Expected global proxy write")
	}
	if host := ctl.Host(ctx); host != "192.168.1.5" {
		t.Errorf("Expected host 192.168.1.5, got %q", host)
	}
	if port := ctl.Port(ctx); port != "8080" {
		t.Errorf("Expected port 8080, got %q", port)
	}

	if got := ctl.SetEnabled(ctx, false, netkit.ProxyInfo{}); got != netkit.OutcomeApplied {
		t.Fatalf("Expected applied, got %s", got)
	}
	if !shell.ran("settings put global http_proxy :0") {
		t.Error("Expected global proxy clear")
	}
	if host, port := ctl.Host(ctx), ctl.Port(ctx); host != "" || port != "" {
		t.Errorf("Expected no proxy after disable, got %q:%q", host, port)
	}
}

func TestControllerKeepsRecordProxy(t *testing.T) {
	shell := newFakeShell().
		on("getprop ro.build.version.sdk", "30").
		on("dumpsys wifi", dumpsysEnabled).
		on("ip -4 addr show wlan0", "inet 192.168.1.23/24").
		on("settings get global http_proxy", "null")
	ctl := newAdbController(t, shell)
	ctx := context.Background()

	if got := ctl.SetEnabled(ctx, true, netkit.ProxyInfo{Host: "10.0.0.1", Port: 8888}); got != netkit.OutcomeApplied {
		t.Fatalf("Expected applied, got %s", got)
	}

	// Record 1 carries its own STATIC proxy, which the shell cannot clear.
	if got := ctl.SetEnabled(ctx, false, netkit.ProxyInfo{}); got != netkit.OutcomeFailed {
		t.Fatalf("Expected failed, got %s", got)
	}
	if shell.ran("settings put global http_proxy :0") {
		t.Error("Expected no global write when the record proxy would remain")
	}
	if host := ctl.Host(ctx); host != "10.0.0.1" {
		t.Errorf("Expected proxy to stay reported as 10.0.0.1, got %q", host)
	}
}

func TestGlobalProxyRefusesClearOverRecordProxy(t *testing.T) {
	shell := newFakeShell().on("settings get global http_proxy", "null")
	g := &globalProxy{shell: shell}
	rec := netkit.NetworkRecord{ID: 1, ProxySetting: netkit.ProxyStatic, ProxyHost: "10.0.0.1", ProxyPort: 8888}

	res := g.WriteProxy(context.Background(), rec, netkit.ProxyNone, netkit.ProxyInfo{})
	if !res.Failed() {
		t.Fatal("Expected clear to fail")
	}
	if !errors.Is(res.Err, errRecordProxy) {
		t.Errorf("Expected errRecordProxy, got %v", res.Err)
	}
}

// TestControllerKeepsRadioOn covers adb over WiFi: switching the radio off
// would cut the session that issued the change.
func TestControllerKeepsRadioOn(t *testing.T) {
	shell := newFakeShell().
		on("getprop ro.build.version.sdk", "30").
		on("dumpsys wifi", dumpsysNoRecordProxy).
		on("ip -4 addr show wlan0", "inet 192.168.1.23/24").
		on("settings get global http_proxy", "null").
		fail("svc wifi disable", errors.New("device offline"))
	ctl := newAdbController(t, shell)
	ctx := context.Background()

	if got := ctl.SetEnabled(ctx, true, netkit.ProxyInfo{Host: "10.0.0.1", Port: 8888}); got != netkit.OutcomeApplied {
		t.Fatalf("Expected applied, got %s", got)
	}
	for _, cmd := range []string{"svc wifi disable", "svc wifi enable"} {
		if shell.ran(cmd) {
			t.Errorf("Expected no %q during a proxy change", cmd)
		}
	}
	if !ctl.IsEnabled(ctx) {
		t.Error("Expected WiFi to stay enabled")
	}
}

func TestGlobalProxyLookupFailure(t *testing.T) {
	shell := newFakeShell().fail("settings get global http_proxy", errors.New("permission denial"))
	g := &globalProxy{shell: shell}

	res := g.WriteProxy(context.Background(), netkit.NetworkRecord{ID: 1}, netkit.ProxyStatic, netkit.ProxyInfo{Host: "h", Port: 1})
	if !res.Failed() {
		t.Fatal("Expected write to fail")
	}
	if !errors.Is(res.Err, netkit.ErrCapabilityLookup) {
		t.Errorf("Expected ErrCapabilityLookup, got %v", res.Err)
	}
	if shell.ran("settings put global http_proxy h:1") {
		t.Error("Expected no write after failed lookup")
	}
}

func TestGlobalProxyRejectsPAC(t *testing.T) {
	shell := newFakeShell().on("settings get global http_proxy", "null")
	g := &globalProxy{shell: shell}
	res := g.WriteProxy(context.Background(), netkit.NetworkRecord{}, netkit.ProxyPAC, netkit.ProxyInfo{})
	if !res.Failed() {
		t.Error("Expected PAC write to fail")
	}
}
