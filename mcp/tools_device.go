package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDeviceTools registers device management tools
func (s *MCPServer) registerDeviceTools() {
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List all connected Android devices"),
		),
		s.handleDeviceList,
	)

	s.server.AddTool(
		mcp.NewTool("device_info",
			mcp.WithDescription("Get device properties (model, Android version, SDK level, WiFi IP)"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleDeviceInfo,
	)

	s.server.AddTool(
		mcp.NewTool("device_ip",
			mcp.WithDescription("Get the device's current WiFi IP address"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleDeviceIP,
	)

	s.server.AddTool(
		mcp.NewTool("adb_wifi_on",
			mcp.WithDescription("Switch adb to TCP/IP mode on port 5555 and connect over WiFi"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("USB device ID"),
			),
		),
		s.handleAdbWifiOn,
	)
}

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.app.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	if len(devices) == 0 {
		return textResult("No devices connected"), nil
	}

	result := fmt.Sprintf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		result += fmt.Sprintf("%d. %s\n   State: %s\n   Type: %s\n", i+1, d.ID, d.State, d.Type)
		if d.Model != "" {
			result += fmt.Sprintf("   Model: %s\n", d.Model)
		}
		if d.IsPinned {
			result += "   Pinned\n"
		}
	}
	return textResult(result), nil
}

func (s *MCPServer) handleDeviceInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}

	info, err := s.app.GetDeviceInfo(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device info: %w", err)
	}

	result := fmt.Sprintf("Device: %s\n\nModel: %s %s\nAndroid: %s (SDK %d)\nABI: %s\n",
		deviceID, info.Brand, info.Model, info.AndroidVer, info.SDK, info.ABI)
	if info.WifiIP != "" {
		result += fmt.Sprintf("WiFi IP: %s\n", info.WifiIP)
	}
	jsonData, _ := json.MarshalIndent(info, "", "  ")
	result += fmt.Sprintf("\nJSON:\n```json\n%s\n```", string(jsonData))
	return textResult(result), nil
}

func (s *MCPServer) handleDeviceIP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	ip, err := s.app.GetDeviceIP(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device IP: %w", err)
	}
	return textResult(fmt.Sprintf("Device IP: %s", ip)), nil
}

func (s *MCPServer) handleAdbWifiOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	address, err := s.app.SwitchToWireless(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to switch to wireless: %w", err)
	}
	return textResult(fmt.Sprintf("adb connected over WiFi at %s", address)), nil
}
