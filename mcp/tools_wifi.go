package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerWifiTools registers WiFi radio and proxy tools
func (s *MCPServer) registerWifiTools() {
	s.server.AddTool(
		mcp.NewTool("wifi_status",
			mcp.WithDescription("Get WiFi state, IP, active saved network and its direct proxy"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleWifiStatus,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_enable",
			mcp.WithDescription("Turn the device's WiFi radio on or off"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			mcp.WithBoolean("enabled",
				mcp.Required(),
				mcp.Description("true to turn WiFi on, false to turn it off"),
			),
		),
		s.handleWifiEnable,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_settings_open",
			mcp.WithDescription("Open the WiFi settings screen on the device"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleWifiSettingsOpen,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_networks",
			mcp.WithDescription("List the device's saved WiFi networks and their proxy settings"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleWifiNetworks,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_proxy_get",
			mcp.WithDescription("Get the direct HTTP proxy of the active WiFi network"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleWifiProxyGet,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_proxy_set",
			mcp.WithDescription("Set a direct HTTP proxy on the active WiFi network. The device reconnects to apply it."),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			mcp.WithString("host",
				mcp.Required(),
				mcp.Description("Proxy host name or IP"),
			),
			mcp.WithNumber("port",
				mcp.Required(),
				mcp.Description("Proxy port (1-65535)"),
			),
		),
		s.handleWifiProxySet,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_proxy_clear",
			mcp.WithDescription("Remove the direct HTTP proxy from the active WiFi network"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
		),
		s.handleWifiProxyClear,
	)

	s.server.AddTool(
		mcp.NewTool("wifi_proxy_history",
			mcp.WithDescription("List recent proxy changes made by the toolkit"),
			mcp.WithString("device_id",
				mcp.Description("Only show changes for this device"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries (default: 20)"),
			),
		),
		s.handleWifiProxyHistory,
	)
}

func (s *MCPServer) handleWifiStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	st, err := s.app.GetWifiStatus(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wifi status: %w", err)
	}

	if !st.WifiEnabled {
		return textResult(fmt.Sprintf("WiFi on %s is off", deviceID)), nil
	}
	result := fmt.Sprintf("WiFi on %s is on\nIP: %s\n", deviceID, st.IP)
	if st.SSID != "" {
		result += fmt.Sprintf("Network: %s (id %d)\n", st.SSID, st.NetworkID)
	} else {
		result += "Network: not a saved network\n"
	}
	switch {
	case !st.Supported:
		result += "Proxy: not supported on this device\n"
	case st.ProxyHost == "":
		result += "Proxy: none\n"
	default:
		result += fmt.Sprintf("Proxy: %s:%s\n", st.ProxyHost, st.ProxyPort)
	}
	return textResult(result), nil
}

func (s *MCPServer) handleWifiEnable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, err := requiredString(args, "device_id")
	if err != nil {
		return nil, err
	}
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return nil, fmt.Errorf("enabled is required")
	}
	if err := s.app.SetWifiEnabled(deviceID, enabled); err != nil {
		return nil, fmt.Errorf("failed to switch wifi: %w", err)
	}
	state := "off"
	if enabled {
		state = "on"
	}
	return textResult(fmt.Sprintf("WiFi turned %s on %s", state, deviceID)), nil
}

func (s *MCPServer) handleWifiSettingsOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	s.app.OpenWifiSettings(deviceID)
	return textResult(fmt.Sprintf("Requested WiFi settings screen on %s", deviceID)), nil
}

func (s *MCPServer) handleWifiNetworks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	records, err := s.app.ListWifiNetworks(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	if len(records) == 0 {
		return textResult("No saved networks"), nil
	}

	result := fmt.Sprintf("Found %d saved network(s):\n\n", len(records))
	for _, r := range records {
		result += fmt.Sprintf("- [%d] %s  proxy=%s", r.ID, r.SSID, r.ProxySetting)
		if p := r.Proxy(); !p.IsZero() {
			result += " " + p.String()
		}
		result += "\n"
	}
	return textResult(result), nil
}

func (s *MCPServer) handleWifiProxyGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	host, port, err := s.app.GetWifiProxy(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}
	if host == "" {
		return textResult("No proxy set"), nil
	}
	return textResult(fmt.Sprintf("Proxy: %s:%s", host, port)), nil
}

func (s *MCPServer) handleWifiProxySet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, err := requiredString(args, "device_id")
	if err != nil {
		return nil, err
	}
	host, err := requiredString(args, "host")
	if err != nil {
		return nil, err
	}
	p, ok := args["port"].(float64)
	if !ok {
		return nil, fmt.Errorf("port is required")
	}

	res, err := s.app.SetWifiProxy(deviceID, host, int(p))
	if err != nil {
		return nil, fmt.Errorf("failed to set proxy: %w", err)
	}
	return proxyResult(res), nil
}

func (s *MCPServer) handleWifiProxyClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request.GetArguments(), "device_id")
	if err != nil {
		return nil, err
	}
	res, err := s.app.ClearWifiProxy(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear proxy: %w", err)
	}
	return proxyResult(res), nil
}

// proxyResult reports an outcome. Only "applied" changed the device; the
// others are reported as errors to the client without failing the call.
func proxyResult(res WifiProxyResult) *mcp.CallToolResult {
	text := fmt.Sprintf("Outcome: %s\n%s", res.Outcome, res.Message)
	result := textResult(text)
	result.IsError = res.Outcome != "applied"
	return result
}

func (s *MCPServer) handleWifiProxyHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, _ := args["device_id"].(string)
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	entries, err := s.app.GetWifiProxyHistory(deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		return textResult("No proxy changes recorded"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d proxy change(s):\n\n", len(entries))
	for _, e := range entries {
		when := time.UnixMilli(e.CreatedAt).Format(time.RFC3339)
		if e.Action == "set" {
			fmt.Fprintf(&b, "- %s %s set %s:%d -> %s\n", when, e.DeviceID, e.Host, e.Port, e.Outcome)
		} else {
			fmt.Fprintf(&b, "- %s %s %s -> %s\n", when, e.DeviceID, e.Action, e.Outcome)
		}
	}
	return textResult(b.String()), nil
}
