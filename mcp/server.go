// Package mcp exposes the toolkit over the Model Context Protocol so AI
// clients can inspect devices and drive their WiFi proxy.
package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"

	"adtkit/pkg/netkit"
	"adtkit/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from shared types package
type (
	Device            = types.Device
	DeviceInfo        = types.DeviceInfo
	WifiStatus        = types.WifiStatus
	WifiProxyResult   = types.WifiProxyResult
	ProxyHistoryEntry = types.ProxyHistoryEntry
	CaptureStatus     = types.CaptureStatus
	NetworkRecord     = netkit.NetworkRecord
)

// ToolkitApp is what the MCP server needs from the main App.
type ToolkitApp interface {
	GetAppVersion() string

	// Devices
	GetDevices() ([]Device, error)
	GetDeviceInfo(deviceId string) (DeviceInfo, error)
	GetDeviceIP(deviceId string) (string, error)
	SwitchToWireless(deviceId string) (string, error)

	// WiFi and proxy
	GetWifiStatus(deviceId string) (WifiStatus, error)
	GetWifiProxy(deviceId string) (string, string, error)
	SetWifiProxy(deviceId, host string, port int) (WifiProxyResult, error)
	ClearWifiProxy(deviceId string) (WifiProxyResult, error)
	SetWifiEnabled(deviceId string, on bool) error
	OpenWifiSettings(deviceId string)
	ListWifiNetworks(deviceId string) ([]NetworkRecord, error)
	GetWifiProxyHistory(deviceId string, limit int) ([]ProxyHistoryEntry, error)

	// Apps
	StartApp(deviceId, packageName string) (string, error)
	ForceStopApp(deviceId, packageName string) (string, error)
	ClearAppData(deviceId, packageName string) (string, error)
	RestartApp(deviceId, packageName string) (string, error)
	ResetApp(deviceId, packageName string) (string, error)
	GetTargetPackage() string

	// Capture
	StartCapture(deviceId string, port int, mitm bool) (CaptureStatus, error)
	StopCapture() error
	GetCaptureStatus() CaptureStatus
}

type MCPServer struct {
	app       ToolkitApp
	server    *server.MCPServer
	stdio     *server.StdioServer
	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates a new MCP server for the toolkit
func NewMCPServer(app ToolkitApp) *MCPServer {
	mcpServer := server.NewMCPServer(
		"adtkit",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithElicitation(), // confirmation for destructive app tools
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}
	s.registerTools()
	s.registerResources()
	return s
}

func (s *MCPServer) registerTools() {
	s.registerDeviceTools()
	s.registerWifiTools()
	s.registerAppTools()
	s.registerCaptureTools()
}

func (s *MCPServer) registerResources() {
	s.server.AddResource(
		mcp.NewResource(
			"adtkit://devices",
			"Connected Android devices",
			mcp.WithMIMEType("application/json"),
		),
		s.handleDevicesResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"adtkit://devices/{deviceId}",
			"Device information",
		),
		s.handleDeviceInfoResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"adtkit://devices/{deviceId}/wifi",
			"WiFi and proxy status",
		),
		s.handleWifiResource,
	)
}

// Start serves MCP over stdio until ctx is cancelled or stdin closes.
func (s *MCPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.stdio = server.NewStdioServer(s.server)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	fmt.Fprintln(os.Stderr, "[MCP] adtkit MCP server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
		return err
	}
	return nil
}

// Stop marks the server stopped; the stdio loop ends with its context or
// when stdin closes.
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
}

func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// requestConfirmation asks the client to confirm a destructive operation
func (s *MCPServer) requestConfirmation(ctx context.Context, operation, details string) (bool, error) {
	elicitationRequest := mcp.ElicitationRequest{
		Params: mcp.ElicitationParams{
			Message: fmt.Sprintf("Dangerous operation: %s\n\nDetails: %s\n\nDo you want to proceed?", operation, details),
			RequestedSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Confirm to proceed with this operation",
					},
				},
				"required": []string{"confirm"},
			},
		},
	}

	result, err := s.server.RequestElicitation(ctx, elicitationRequest)
	if err != nil {
		return false, fmt.Errorf("failed to request confirmation: %w", err)
	}
	if result.Action != mcp.ElicitationResponseActionAccept {
		return false, nil
	}

	data, ok := result.Content.(map[string]any)
	if !ok {
		return false, fmt.Errorf("unexpected response format")
	}
	confirm, ok := data["confirm"].(bool)
	if !ok {
		return false, fmt.Errorf("invalid confirmation response")
	}
	return confirm, nil
}

// requiredString returns a non-empty string argument or an error naming it.
func requiredString(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
