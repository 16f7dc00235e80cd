package mcp

import (
	"errors"
	"sync"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockToolkitApp is a mock implementation of ToolkitApp for testing
type MockToolkitApp struct {
	mu    sync.Mutex
	Calls []MockCall

	AppVersion string

	// Devices
	GetDevicesResult       []Device
	GetDevicesError        error
	GetDeviceInfoResult    DeviceInfo
	GetDeviceInfoError     error
	GetDeviceIPResult      string
	GetDeviceIPError       error
	SwitchToWirelessResult string
	SwitchToWirelessError  error

	// WiFi and proxy
	GetWifiStatusResult       WifiStatus
	GetWifiStatusError        error
	GetWifiProxyHost          string
	GetWifiProxyPort          string
	GetWifiProxyError         error
	SetWifiProxyResult        WifiProxyResult
	SetWifiProxyError         error
	ClearWifiProxyResult      WifiProxyResult
	ClearWifiProxyError       error
	SetWifiEnabledError       error
	ListWifiNetworksResult    []NetworkRecord
	ListWifiNetworksError     error
	GetWifiProxyHistoryResult []ProxyHistoryEntry
	GetWifiProxyHistoryError  error

	// Apps
	StartAppResult      string
	StartAppError       error
	ForceStopAppResult  string
	ForceStopAppError   error
	ClearAppDataResult  string
	ClearAppDataError   error
	RestartAppResult    string
	RestartAppError     error
	ResetAppResult      string
	ResetAppError       error
	TargetPackageResult string

	// Capture
	StartCaptureResult CaptureStatus
	StartCaptureError  error
	StopCaptureError   error
	CaptureStatus      CaptureStatus
}

// NewMockToolkitApp creates a new mock with default values
func NewMockToolkitApp() *MockToolkitApp {
	return &MockToolkitApp{
		Calls:            make([]MockCall, 0),
		AppVersion:       "1.0.0-test",
		GetDevicesResult: []Device{},
	}
}

func (m *MockToolkitApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls
func (m *MockToolkitApp) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.Calls...)
}

// GetLastCall returns the last recorded call
func (m *MockToolkitApp) GetLastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

// WasMethodCalled checks if a method was called
func (m *MockToolkitApp) WasMethodCalled(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if call.Method == method {
			return true
		}
	}
	return false
}

// GetLastCallByMethod returns the last call of a specific method
func (m *MockToolkitApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			return &m.Calls[i]
		}
	}
	return nil
}

// ========================================
// ToolkitApp implementation
// ========================================

func (m *MockToolkitApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}

func (m *MockToolkitApp) GetDevices() ([]Device, error) {
	m.recordCall("GetDevices")
	return m.GetDevicesResult, m.GetDevicesError
}

func (m *MockToolkitApp) GetDeviceInfo(deviceId string) (DeviceInfo, error) {
	m.recordCall("GetDeviceInfo", deviceId)
	return m.GetDeviceInfoResult, m.GetDeviceInfoError
}

func (m *MockToolkitApp) GetDeviceIP(deviceId string) (string, error) {
	m.recordCall("GetDeviceIP", deviceId)
	return m.GetDeviceIPResult, m.GetDeviceIPError
}

func (m *MockToolkitApp) SwitchToWireless(deviceId string) (string, error) {
	m.recordCall("SwitchToWireless", deviceId)
	return m.SwitchToWirelessResult, m.SwitchToWirelessError
}

func (m *MockToolkitApp) GetWifiStatus(deviceId string) (WifiStatus, error) {
	m.recordCall("GetWifiStatus", deviceId)
	return m.GetWifiStatusResult, m.GetWifiStatusError
}

func (m *MockToolkitApp) GetWifiProxy(deviceId string) (string, string, error) {
	m.recordCall("GetWifiProxy", deviceId)
	return m.GetWifiProxyHost, m.GetWifiProxyPort, m.GetWifiProxyError
}

func (m *MockToolkitApp) SetWifiProxy(deviceId, host string, port int) (WifiProxyResult, error) {
	m.recordCall("SetWifiProxy", deviceId, host, port)
	return m.SetWifiProxyResult, m.SetWifiProxyError
}

func (m *MockToolkitApp) ClearWifiProxy(deviceId string) (WifiProxyResult, error) {
	m.recordCall("ClearWifiProxy", deviceId)
	return m.ClearWifiProxyResult, m.ClearWifiProxyError
}

func (m *MockToolkitApp) SetWifiEnabled(deviceId string, on bool) error {
	m.recordCall("SetWifiEnabled", deviceId, on)
	return m.SetWifiEnabledError
}

func (m *MockToolkitApp) OpenWifiSettings(deviceId string) {
	m.recordCall("OpenWifiSettings", deviceId)
}

func (m *MockToolkitApp) ListWifiNetworks(deviceId string) ([]NetworkRecord, error) {
	m.recordCall("ListWifiNetworks", deviceId)
	return m.ListWifiNetworksResult, m.ListWifiNetworksError
}

func (m *MockToolkitApp) GetWifiProxyHistory(deviceId string, limit int) ([]ProxyHistoryEntry, error) {
	m.recordCall("GetWifiProxyHistory", deviceId, limit)
	return m.GetWifiProxyHistoryResult, m.GetWifiProxyHistoryError
}

func (m *MockToolkitApp) StartApp(deviceId, packageName string) (string, error) {
	m.recordCall("StartApp", deviceId, packageName)
	return m.StartAppResult, m.StartAppError
}

func (m *MockToolkitApp) ForceStopApp(deviceId, packageName string) (string, error) {
	m.recordCall("ForceStopApp", deviceId, packageName)
	return m.ForceStopAppResult, m.ForceStopAppError
}

func (m *MockToolkitApp) ClearAppData(deviceId, packageName string) (string, error) {
	m.recordCall("ClearAppData", deviceId, packageName)
	return m.ClearAppDataResult, m.ClearAppDataError
}

func (m *MockToolkitApp) RestartApp(deviceId, packageName string) (string, error) {
	m.recordCall("RestartApp", deviceId, packageName)
	return m.RestartAppResult, m.RestartAppError
}

func (m *MockToolkitApp) ResetApp(deviceId, packageName string) (string, error) {
	m.recordCall("ResetApp", deviceId, packageName)
	return m.ResetAppResult, m.ResetAppError
}

func (m *MockToolkitApp) GetTargetPackage() string {
	m.recordCall("GetTargetPackage")
	return m.TargetPackageResult
}

func (m *MockToolkitApp) StartCapture(deviceId string, port int, mitm bool) (CaptureStatus, error) {
	m.recordCall("StartCapture", deviceId, port, mitm)
	return m.StartCaptureResult, m.StartCaptureError
}

func (m *MockToolkitApp) StopCapture() error {
	m.recordCall("StopCapture")
	return m.StopCaptureError
}

func (m *MockToolkitApp) GetCaptureStatus() CaptureStatus {
	m.recordCall("GetCaptureStatus")
	return m.CaptureStatus
}

// ========================================
// Test fixtures
// ========================================

// SetupWithDevices configures the mock to return specific devices
func (m *MockToolkitApp) SetupWithDevices(devices ...Device) *MockToolkitApp {
	m.GetDevicesResult = devices
	return m
}

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceOffline  = errors.New("device offline")
	ErrCaptureRunning = errors.New("capture already running")
)

// SampleDevice returns a sample device for testing
func SampleDevice(id string) Device {
	return Device{
		ID:         id,
		Serial:     id,
		State:      "device",
		Model:      "Pixel 6",
		Type:       "wired",
		LastActive: 1700000000,
	}
}

// SampleWifiStatus returns a connected device with a proxy set
func SampleWifiStatus(id string) WifiStatus {
	return WifiStatus{
		DeviceID:    id,
		WifiEnabled: true,
		IP:          "192.168.1.23",
		NetworkID:   1,
		SSID:        "Office",
		Supported:   true,
		Capability:  "settings-global",
		ProxyHost:   "192.168.1.5",
		ProxyPort:   "8080",
	}
}
