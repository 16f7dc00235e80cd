package main

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"adtkit/pkg/types"
)

type (
	Device     = types.Device
	DeviceInfo = types.DeviceInfo
)

// deviceIDPattern accepts USB serials ("emulator-5554"), ip:port for
// wireless devices and mDNS names ("adb-xxxxx._adb-tls-connect._tcp.").
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID rejects ids that could smuggle shell syntax into adb.
func ValidateDeviceID(deviceId string) error {
	if deviceId == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceId) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceId) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	return nil
}

// GetDevices returns a list of connected ADB devices
func (a *App) GetDevices() ([]Device, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	output, err := a.adb(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := parseDeviceList(output)
	pinned := a.settings.GetPinnedSerial()
	for i := range devices {
		devices[i].LastActive = a.settings.GetLastActive(devices[i].ID)
		devices[i].IsPinned = devices[i].Serial == pinned
	}

	// Pinned first, then most recently used.
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].IsPinned != devices[j].IsPinned {
			return devices[i].IsPinned
		}
		return devices[i].LastActive > devices[j].LastActive
	})
	return devices, nil
}

func parseDeviceList(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		d := Device{ID: parts[0], Serial: parts[0], State: parts[1], Type: "wired"}
		hasUSB := false
		for _, p := range parts[2:] {
			k, v, ok := strings.Cut(p, ":")
			if !ok {
				continue
			}
			switch k {
			case "model":
				d.Model = v
			case "product":
				d.Product = v
			case "usb":
				hasUSB = true
			}
		}
		if !hasUSB && (strings.Contains(d.ID, ":") || strings.Contains(d.ID, "._tcp")) {
			d.Type = "wireless"
		}
		devices = append(devices, d)
	}
	return devices
}

// ResolveDevice picks the device for a command: the explicit id, else the
// pinned serial when connected, else the only connected device.
func (a *App) ResolveDevice(deviceId string) (string, error) {
	if deviceId != "" {
		return deviceId, ValidateDeviceID(deviceId)
	}

	devices, err := a.GetDevices()
	if err != nil {
		return "", err
	}
	var online []Device
	for _, d := range devices {
		if d.State == "device" {
			online = append(online, d)
		}
	}
	if pinned := a.settings.GetPinnedSerial(); pinned != "" {
		for _, d := range online {
			if d.Serial == pinned {
				return d.ID, nil
			}
		}
	}
	switch len(online) {
	case 0:
		return "", fmt.Errorf("no device connected")
	case 1:
		return online[0].ID, nil
	default:
		return "", fmt.Errorf("%d devices connected, pick one with -s", len(online))
	}
}

// GetDeviceInfo reads identity properties and the WiFi address
func (a *App) GetDeviceInfo(deviceId string) (DeviceInfo, error) {
	var info DeviceInfo
	if err := ValidateDeviceID(deviceId); err != nil {
		return info, err
	}
	ctx, cancel := a.opContext()
	defer cancel()

	output, err := a.adb(ctx, "-s", deviceId, "shell", "getprop")
	if err != nil {
		return info, fmt.Errorf("failed to read device properties: %w", err)
	}
	for _, line := range strings.Split(output, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "]: [")
		if !ok {
			continue
		}
		key = strings.TrimPrefix(key, "[")
		val = strings.TrimSuffix(val, "]")
		switch key {
		case "ro.product.model":
			info.Model = val
		case "ro.product.brand":
			info.Brand = val
		case "ro.product.manufacturer":
			info.Manufacturer = val
		case "ro.build.version.release":
			info.AndroidVer = val
		case "ro.build.version.sdk":
			info.SDK, _ = strconv.Atoi(val)
		case "ro.product.cpu.abi":
			info.ABI = val
		case "ro.serialno":
			info.Serial = val
		}
	}

	info.WifiIP, _ = a.GetDeviceIP(deviceId)
	return info, nil
}

// GetDeviceIP returns the device's WiFi address, or "" with an error when
// the radio is off or unassociated.
func (a *App) GetDeviceIP(deviceId string) (string, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return "", err
	}
	ip := dw.ctl.Reader().IP(ctx)
	if ip == "" {
		return "", fmt.Errorf("could not find device IP (ensure Wi-Fi is on)")
	}
	return ip, nil
}

// SwitchToWireless enables TCP/IP mode on the device and connects to it.
// It returns the address to use with adb connect.
func (a *App) SwitchToWireless(deviceId string) (string, error) {
	timer := StartOperation("device", "adb_wifi_on").AddDetail("device", deviceId)
	ip, err := a.GetDeviceIP(deviceId)
	if err != nil {
		timer.EndWithError(err)
		return "", err
	}

	ctx, cancel := a.opContext()
	defer cancel()
	if _, err := a.adb(ctx, "-s", deviceId, "tcpip", "5555"); err != nil {
		timer.EndWithError(err)
		return "", fmt.Errorf("failed to enable tcpip mode: %w", err)
	}

	address := ip + ":5555"
	if a.sim == nil {
		time.Sleep(1 * time.Second)
		out, err := a.adb(ctx, "connect", address)
		if err != nil || strings.Contains(out, "failed") || strings.Contains(out, "unable") {
			LogUserAction(ActionDeviceConnect, address, map[string]interface{}{"success": false, "output": strings.TrimSpace(out)})
			if err == nil {
				err = fmt.Errorf("%s", strings.TrimSpace(out))
			}
			timer.EndWithError(err)
			return address, fmt.Errorf("connection failed: %w", err)
		}
	}

	LogUserAction(ActionDeviceConnect, address, map[string]interface{}{"success": true})
	timer.End()
	return address, nil
}

// SwitchToUSB returns adbd to USB mode.
func (a *App) SwitchToUSB(deviceId string) (string, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return "", err
	}
	ctx, cancel := a.opContext()
	defer cancel()
	out, err := a.adb(ctx, "-s", deviceId, "usb")
	if err != nil {
		return out, fmt.Errorf("failed to switch to usb mode: %w", err)
	}
	LogUserAction(ActionDeviceDisconnect, deviceId, map[string]interface{}{"mode": "usb"})
	return strings.TrimSpace(out), nil
}

// TogglePinDevice pins serial, or unpins it when already pinned.
func (a *App) TogglePinDevice(serial string) {
	if a.settings.GetPinnedSerial() == serial {
		a.settings.SetPinnedSerial("")
	} else {
		a.settings.SetPinnedSerial(serial)
	}
	if err := a.settings.SaveSettings(); err != nil {
		LogWarn("settings").Err(err).Msg("saving pinned device")
	}
}
