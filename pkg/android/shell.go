// Package android implements the netkit platform interfaces on top of
// `adb shell` for a single connected device.
package android

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"adtkit/pkg/netkit"
)

// Shell runs commands inside the device shell.
type Shell interface {
	// Output runs the command and returns its combined output.
	Output(ctx context.Context, args ...string) (string, error)
}

// Device is the adb-backed Radio and RecordStore for one device.
type Device struct {
	shell Shell
	log   zerolog.Logger
}

func NewDevice(shell Shell, log zerolog.Logger) *Device {
	return &Device{shell: shell, log: log}
}

// SDK returns ro.build.version.sdk.
func (d *Device) SDK(ctx context.Context) (int, error) {
	out, err := d.shell.Output(ctx, "getprop", "ro.build.version.sdk")
	if err != nil {
		return 0, fmt.Errorf("read sdk level: %w", err)
	}
	sdk, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse sdk level %q: %w", strings.TrimSpace(out), err)
	}
	return sdk, nil
}

func (d *Device) WifiEnabled(ctx context.Context) (bool, error) {
	out, err := d.shell.Output(ctx, "dumpsys", "wifi")
	if err != nil {
		return false, fmt.Errorf("dumpsys wifi: %w", err)
	}
	return parseWifiEnabled(out)
}

func (d *Device) ConnectionInfo(ctx context.Context) (netkit.ConnectionState, error) {
	out, err := d.shell.Output(ctx, "dumpsys", "wifi")
	if err != nil {
		return netkit.ConnectionState{}, fmt.Errorf("dumpsys wifi: %w", err)
	}
	enabled, err := parseWifiEnabled(out)
	if err != nil {
		return netkit.ConnectionState{}, err
	}
	state := netkit.ConnectionState{Enabled: enabled, NetworkID: -1}
	if !enabled {
		return state, nil
	}

	info := parseWifiInfo(out)
	state.NetworkID = info.networkID
	ip := info.ip
	if ip == "" {
		// Newer builds redact the address from mWifiInfo.
		ip = d.wlanAddress(ctx)
	}
	if raw, ok := netkit.ParseIP(ip); ok {
		state.RawAddress = raw
	}
	return state, nil
}

func (d *Device) wlanAddress(ctx context.Context) string {
	out, err := d.shell.Output(ctx, "ip", "-4", "addr", "show", "wlan0")
	if err != nil {
		d.log.Debug().Err(err).Msg("wlan0 address lookup failed")
		return ""
	}
	return parseInetAddress(out)
}

func (d *Device) ConfiguredNetworks(ctx context.Context) ([]netkit.NetworkRecord, error) {
	out, err := d.shell.Output(ctx, "dumpsys", "wifi")
	if err != nil {
		return nil, fmt.Errorf("dumpsys wifi: %w", err)
	}
	if records := parseConfiguredNetworks(out); len(records) > 0 {
		return records, nil
	}

	// Android 11+ may omit configurations from dumpsys; fall back to the
	// wifi shell command, which lists ids without proxy fields.
	out, err = d.shell.Output(ctx, "cmd", "wifi", "list-networks")
	if err != nil {
		return nil, fmt.Errorf("cmd wifi list-networks: %w", err)
	}
	return parseListNetworks(out), nil
}

// SaveConfiguration is a no-op: the settings provider persists writes
// immediately.
func (d *Device) SaveConfiguration(ctx context.Context) error {
	return nil
}

// Disconnect and Reconnect do not cycle the radio. The connectivity
// service applies http_proxy to the live link on its own, and turning WiFi
// off would drop an adb session running over tcpip.
func (d *Device) Disconnect(ctx context.Context) error {
	return nil
}

func (d *Device) Reconnect(ctx context.Context) error {
	return nil
}

// SetWifiEnabled powers the radio on or off.
func (d *Device) SetWifiEnabled(ctx context.Context, on bool) error {
	state := "disable"
	if on {
		state = "enable"
	}
	return d.run(ctx, "svc", "wifi", state)
}

// OpenWifiSettings brings up the system WiFi settings screen.
func (d *Device) OpenWifiSettings(ctx context.Context) error {
	return d.run(ctx, "am", "start", "-a", "android.settings.WIFI_SETTINGS")
}

// Capability reads the SDK level and selects the matching variant.
func (d *Device) Capability(ctx context.Context) (netkit.ProxyCapability, error) {
	sdk, err := d.SDK(ctx)
	if err != nil {
		return nil, err
	}
	c := netkit.SelectCapability(sdk, Variants(d.shell))
	d.log.Debug().Int("sdk", sdk).Str("capability", c.Name()).Msg("proxy capability selected")
	return c, nil
}

func (d *Device) run(ctx context.Context, args ...string) error {
	out, err := d.shell.Output(ctx, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.Join(args, " "), err)
	}
	if failed(out) {
		return fmt.Errorf("%s: %s", strings.Join(args, " "), strings.TrimSpace(out))
	}
	return nil
}

func failed(out string) bool {
	return strings.Contains(out, "Error:") || strings.Contains(out, "Exception") || strings.Contains(out, "Failure")
}
