package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func makeResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func getResourceText(contents []mcp.ResourceContents) string {
	if len(contents) == 0 {
		return ""
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); ok {
		return tc.Text
	}
	return ""
}

func TestHandleDevicesResource_Success(t *testing.T) {
	mock := NewMockToolkitApp()
	mock.SetupWithDevices(SampleDevice("device1"), SampleDevice("device2"))
	server := NewMCPServer(mock)

	contents, err := server.handleDevicesResource(context.Background(), makeResourceRequest("adtkit://devices"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var devices []Device
	if err := json.Unmarshal([]byte(getResourceText(contents)), &devices); err != nil {
		t.Fatalf("Resource should be valid JSON: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("Expected 2 devices, got %d", len(devices))
	}
}

func TestHandleDevicesResource_Error(t *testing.T) {
	mock := NewMockToolkitApp()
	mock.GetDevicesError = ErrDeviceOffline
	server := NewMCPServer(mock)

	if _, err := server.handleDevicesResource(context.Background(), makeResourceRequest("adtkit://devices")); err == nil {
		t.Error("Expected error when GetDevices fails")
	}
}

func TestHandleDeviceInfoResource(t *testing.T) {
	mock := NewMockToolkitApp()
	mock.GetDeviceInfoResult = DeviceInfo{Model: "Pixel 6", SDK: 34}
	server := NewMCPServer(mock)

	contents, err := server.handleDeviceInfoResource(context.Background(), makeResourceRequest("adtkit://devices/emulator-5554"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(getResourceText(contents), "Pixel 6") {
		t.Error("Resource should contain the model")
	}
	if call := mock.GetLastCallByMethod("GetDeviceInfo"); call == nil || call.Args[0] != "emulator-5554" {
		t.Errorf("Expected GetDeviceInfo(emulator-5554), got %+v", call)
	}
}

func TestHandleDeviceInfoResource_InvalidURI(t *testing.T) {
	server := NewMCPServer(NewMockToolkitApp())
	for _, uri := range []string{"adtkit://devices/", "other://devices/x"} {
		if _, err := server.handleDeviceInfoResource(context.Background(), makeResourceRequest(uri)); err == nil {
			t.Errorf("Expected error for %s", uri)
		}
	}
}

func TestHandleWifiResource(t *testing.T) {
	mock := NewMockToolkitApp()
	mock.GetWifiStatusResult = SampleWifiStatus("192.168.1.23:5555")
	server := NewMCPServer(mock)

	contents, err := server.handleWifiResource(context.Background(), makeResourceRequest("adtkit://devices/192.168.1.23:5555/wifi"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var st WifiStatus
	if err := json.Unmarshal([]byte(getResourceText(contents)), &st); err != nil {
		t.Fatalf("Resource should be valid JSON: %v", err)
	}
	if st.ProxyHost != "192.168.1.5" {
		t.Errorf("Expected proxy host 192.168.1.5, got %s", st.ProxyHost)
	}
	if call := mock.GetLastCallByMethod("GetWifiStatus"); call == nil || call.Args[0] != "192.168.1.23:5555" {
		t.Errorf("Expected GetWifiStatus for the wireless id, got %+v", call)
	}
}
