package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultCapturePort = 8888

// registerCaptureTools registers traffic capture tools
func (s *MCPServer) registerCaptureTools() {
	s.server.AddTool(
		mcp.NewTool("capture_start",
			mcp.WithDescription("Start the host capture proxy and point the device's WiFi proxy at it through adb reverse"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			mcp.WithNumber("port",
				mcp.Description("Port to listen on (default: 8888, 0 for any free port)"),
			),
			mcp.WithBoolean("mitm",
				mcp.Description("Decrypt HTTPS with the toolkit CA (the device must trust it)"),
			),
		),
		s.handleCaptureStart,
	)

	s.server.AddTool(
		mcp.NewTool("capture_stop",
			mcp.WithDescription("Stop capturing and remove the device proxy"),
		),
		s.handleCaptureStop,
	)

	s.server.AddTool(
		mcp.NewTool("capture_status",
			mcp.WithDescription("Get the capture proxy status and counters"),
		),
		s.handleCaptureStatus,
	)
}

func (s *MCPServer) handleCaptureStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, err := requiredString(args, "device_id")
	if err != nil {
		return nil, err
	}
	port := defaultCapturePort
	if p, ok := args["port"].(float64); ok {
		port = int(p)
	}
	mitm, _ := args["mitm"].(bool)

	st, err := s.app.StartCapture(deviceID, port, mitm)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	result := fmt.Sprintf("Capture started for %s\nDevice proxy: %s:%d\n", st.DeviceID, st.HostIP, st.Port)
	if st.MITM {
		result += fmt.Sprintf("HTTPS decryption on, CA: %s\n", st.CertPath)
	}
	return textResult(result), nil
}

func (s *MCPServer) handleCaptureStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := s.app.GetCaptureStatus()
	if !before.Running {
		return textResult("Capture is not running"), nil
	}
	if err := s.app.StopCapture(); err != nil {
		return nil, fmt.Errorf("failed to stop capture: %w", err)
	}
	return textResult(fmt.Sprintf("Capture stopped after %d request(s)", before.Requests)), nil
}

func (s *MCPServer) handleCaptureStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.app.GetCaptureStatus()
	if !st.Running {
		return textResult("Capture status: stopped"), nil
	}
	return textResult(fmt.Sprintf("Capture status: running\nDevice: %s\nProxy: %s:%d\nRequests: %d\nBytes down: %d\nMITM: %v",
		st.DeviceID, st.HostIP, st.Port, st.Requests, st.BytesDown, st.MITM)), nil
}
