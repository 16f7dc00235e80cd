package main

import (
	"fmt"
	"strconv"

	"adtkit/pkg/netkit"
	"adtkit/pkg/types"
)

type (
	WifiStatus        = types.WifiStatus
	WifiProxyResult   = types.WifiProxyResult
	ProxyHistoryEntry = types.ProxyHistoryEntry
)

// GetWifiStatus reads radio, active network and proxy state in one pass.
func (a *App) GetWifiStatus(deviceId string) (WifiStatus, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return WifiStatus{}, err
	}
	dw.mu.Lock()
	st := dw.ctl.Status(ctx)
	dw.mu.Unlock()

	out := WifiStatus{
		DeviceID:    deviceId,
		WifiEnabled: st.WifiEnabled,
		IP:          st.IP,
		NetworkID:   st.Connection.NetworkID,
		Supported:   st.Supported,
		Capability:  st.Capability,
		ProxyHost:   st.Proxy.Host,
		ProxyPort:   st.Proxy.PortString(),
	}
	if !st.WifiEnabled {
		out.NetworkID = -1
	}
	if st.Network != nil {
		out.SSID = st.Network.SSID
	}
	return out, nil
}

// GetWifiProxy returns the active network's proxy host and port, both ""
// when no proxy is set.
func (a *App) GetWifiProxy(deviceId string) (string, string, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return "", "", err
	}
	dw.mu.Lock()
	defer dw.mu.Unlock()
	p := dw.ctl.Proxy(ctx)
	return p.Host, p.PortString(), nil
}

// IsWifiEnabled reports whether the device's WiFi radio is on.
func (a *App) IsWifiEnabled(deviceId string) (bool, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return false, err
	}
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.ctl.IsEnabled(ctx), nil
}

// SetWifiProxy points the active network at host:port.
func (a *App) SetWifiProxy(deviceId, host string, port int) (WifiProxyResult, error) {
	return a.applyProxy(deviceId, true, netkit.ProxyInfo{Host: host, Port: port}, true)
}

// ClearWifiProxy removes the active network's direct proxy.
func (a *App) ClearWifiProxy(deviceId string) (WifiProxyResult, error) {
	return a.applyProxy(deviceId, false, netkit.ProxyInfo{}, false)
}

// applyProxy changes the device proxy. remember records an applied proxy
// as the one ReapplyLastProxy restores; capture tunnels are not remembered.
func (a *App) applyProxy(deviceId string, enable bool, info netkit.ProxyInfo, remember bool) (WifiProxyResult, error) {
	action, userAction := "clear", ActionProxyClear
	if enable {
		action, userAction = "set", ActionProxySet
	}
	timer := StartOperation("network", "proxy_"+action).AddDetail("device", deviceId)

	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		timer.EndWithError(err)
		return WifiProxyResult{}, err
	}
	a.updateLastActive(deviceId)

	dw.mu.Lock()
	outcome := dw.ctl.SetEnabled(ctx, enable, info)
	dw.mu.Unlock()

	res := WifiProxyResult{DeviceID: deviceId, Outcome: string(outcome), Message: outcomeMessage(outcome)}
	if enable {
		res.Host, res.Port = info.Host, info.Port
		timer.AddDetail("proxy", info.String())
	}
	timer.AddDetail("outcome", res.Outcome).End()

	LogUserAction(userAction, deviceId, map[string]interface{}{
		"outcome": res.Outcome,
		"host":    info.Host,
		"port":    info.Port,
	})

	if outcome == netkit.OutcomeApplied && enable && remember {
		a.settings.SetLastProxy(info.Host, info.Port)
		if err := a.settings.SaveSettings(); err != nil {
			LogWarn("settings").Err(err).Msg("saving last proxy")
		}
	}

	if a.history != nil {
		entry := ProxyHistoryEntry{DeviceID: deviceId, Action: action, Host: res.Host, Port: res.Port, Outcome: res.Outcome}
		if _, err := a.history.Record(ctx, entry); err != nil {
			LogWarn("history").Err(err).Msg("recording proxy change")
		}
	}
	return res, nil
}

func outcomeMessage(o netkit.Outcome) string {
	switch o {
	case netkit.OutcomeApplied:
		return "proxy updated, WiFi is reconnecting"
	case netkit.OutcomeWifiOff:
		return "WiFi is off, proxy unchanged"
	case netkit.OutcomeNoActiveNetwork:
		return "not connected to a saved network, proxy unchanged"
	case netkit.OutcomeUnsupported:
		return netkit.NotSupportedNotice
	default:
		return "proxy change failed, see logs"
	}
}

// ReapplyLastProxy sets the most recently applied proxy again.
func (a *App) ReapplyLastProxy(deviceId string) (WifiProxyResult, error) {
	host, port := a.settings.LastProxy()
	if host == "" || port == 0 {
		return WifiProxyResult{}, fmt.Errorf("no previous proxy recorded")
	}
	return a.SetWifiProxy(deviceId, host, port)
}

// SetWifiEnabled switches the device's WiFi radio.
func (a *App) SetWifiEnabled(deviceId string, on bool) error {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return err
	}
	action := ActionWifiDisable
	if on {
		action = ActionWifiEnable
	}
	err = dw.backend.SetWifiEnabled(ctx, on)
	LogUserAction(action, deviceId, map[string]interface{}{"success": err == nil})
	if err != nil {
		return fmt.Errorf("failed to switch wifi: %w", err)
	}
	return nil
}

// OpenWifiSettings shows the WiFi settings screen. A failure is only
// logged; there is nothing the caller can do about it.
func (a *App) OpenWifiSettings(deviceId string) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		LogWarn("network").Err(err).Str("device", deviceId).Msg("open wifi settings")
		return
	}
	if err := dw.backend.OpenWifiSettings(ctx); err != nil {
		LogWarn("network").Err(err).Str("device", deviceId).Msg("open wifi settings")
		return
	}
	LogUserAction(ActionWifiSettings, deviceId, nil)
}

// ListWifiNetworks dumps the device's saved networks.
func (a *App) ListWifiNetworks(deviceId string) ([]netkit.NetworkRecord, error) {
	ctx, cancel := a.opContext()
	defer cancel()

	dw, err := a.wifi(ctx, deviceId)
	if err != nil {
		return nil, err
	}
	records, err := dw.backend.ConfiguredNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved networks: %w", err)
	}
	return records, nil
}

// GetWifiProxyHistory returns recent proxy changes, newest first. An empty
// deviceId lists all devices.
func (a *App) GetWifiProxyHistory(deviceId string, limit int) ([]ProxyHistoryEntry, error) {
	if a.history == nil {
		return nil, fmt.Errorf("proxy history is not open")
	}
	ctx, cancel := a.opContext()
	defer cancel()
	return a.history.List(ctx, deviceId, limit)
}

// formatProxy renders host/port the way the CLI prints them.
func formatProxy(host, port string) string {
	if host == "" && port == "" {
		return "none"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return host
	}
	return host + ":" + port
}
