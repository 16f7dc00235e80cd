package main

import (
	"adtkit/mcp"
	"adtkit/pkg/netkit"
)

// MCPBridge bridges the main App to the MCP server
type MCPBridge struct {
	app *App
}

// NewMCPBridge creates a new MCP bridge
func NewMCPBridge(app *App) *MCPBridge {
	return &MCPBridge{app: app}
}

// Implement mcp.ToolkitApp interface

func (b *MCPBridge) GetAppVersion() string {
	return b.app.GetAppVersion()
}

func (b *MCPBridge) GetDevices() ([]mcp.Device, error) {
	return b.app.GetDevices()
}

func (b *MCPBridge) GetDeviceInfo(deviceId string) (mcp.DeviceInfo, error) {
	return b.app.GetDeviceInfo(deviceId)
}

func (b *MCPBridge) GetDeviceIP(deviceId string) (string, error) {
	return b.app.GetDeviceIP(deviceId)
}

func (b *MCPBridge) SwitchToWireless(deviceId string) (string, error) {
	return b.app.SwitchToWireless(deviceId)
}

func (b *MCPBridge) GetWifiStatus(deviceId string) (mcp.WifiStatus, error) {
	return b.app.GetWifiStatus(deviceId)
}

func (b *MCPBridge) GetWifiProxy(deviceId string) (string, string, error) {
	return b.app.GetWifiProxy(deviceId)
}

func (b *MCPBridge) SetWifiProxy(deviceId, host string, port int) (mcp.WifiProxyResult, error) {
	return b.app.SetWifiProxy(deviceId, host, port)
}

func (b *MCPBridge) ClearWifiProxy(deviceId string) (mcp.WifiProxyResult, error) {
	return b.app.ClearWifiProxy(deviceId)
}

func (b *MCPBridge) SetWifiEnabled(deviceId string, on bool) error {
	return b.app.SetWifiEnabled(deviceId, on)
}

func (b *MCPBridge) OpenWifiSettings(deviceId string) {
	b.app.OpenWifiSettings(deviceId)
}

func (b *MCPBridge) ListWifiNetworks(deviceId string) ([]netkit.NetworkRecord, error) {
	return b.app.ListWifiNetworks(deviceId)
}

func (b *MCPBridge) GetWifiProxyHistory(deviceId string, limit int) ([]mcp.ProxyHistoryEntry, error) {
	return b.app.GetWifiProxyHistory(deviceId, limit)
}

func (b *MCPBridge) StartApp(deviceId, packageName string) (string, error) {
	return b.app.StartApp(deviceId, packageName)
}

func (b *MCPBridge) ForceStopApp(deviceId, packageName string) (string, error) {
	return b.app.ForceStopApp(deviceId, packageName)
}

func (b *MCPBridge) ClearAppData(deviceId, packageName string) (string, error) {
	return b.app.ClearAppData(deviceId, packageName)
}

func (b *MCPBridge) RestartApp(deviceId, packageName string) (string, error) {
	return b.app.RestartApp(deviceId, packageName)
}

func (b *MCPBridge) ResetApp(deviceId, packageName string) (string, error) {
	return b.app.ResetApp(deviceId, packageName)
}

func (b *MCPBridge) GetTargetPackage() string {
	return b.app.GetTargetPackage()
}

// StartCapture runs the capture with request logging only; MCP clients
// poll capture_status for counters.
func (b *MCPBridge) StartCapture(deviceId string, port int, mitm bool) (mcp.CaptureStatus, error) {
	return b.app.StartCapture(deviceId, CaptureOptions{Port: port, MITM: mitm})
}

func (b *MCPBridge) StopCapture() error {
	return b.app.StopCapture()
}

func (b *MCPBridge) GetCaptureStatus() mcp.CaptureStatus {
	return b.app.GetCaptureStatus()
}
