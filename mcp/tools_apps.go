package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerAppTools registers app management tools
func (s *MCPServer) registerAppTools() {
	packageArg := mcp.WithString("package_name",
		mcp.Description("Package name (default: the remembered target package)"),
	)

	s.server.AddTool(
		mcp.NewTool("app_start",
			mcp.WithDescription("Launch an application on the device"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			packageArg,
		),
		s.handleAppStart,
	)

	s.server.AddTool(
		mcp.NewTool("app_stop",
			mcp.WithDescription("Force stop an application"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			packageArg,
		),
		s.handleAppStop,
	)

	s.server.AddTool(
		mcp.NewTool("app_restart",
			mcp.WithDescription("Force stop and relaunch an application"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			packageArg,
		),
		s.handleAppRestart,
	)

	// app_clear_data - Clear app data (DANGEROUS)
	s.server.AddTool(
		mcp.NewTool("app_clear_data",
			mcp.WithDescription("Clear all data for an application (requires confirmation)"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			packageArg,
		),
		s.handleAppClearData,
	)

	// app_reset - Clear data and relaunch (DANGEROUS)
	s.server.AddTool(
		mcp.NewTool("app_reset",
			mcp.WithDescription("Clear an application's data and launch it fresh (requires confirmation)"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device ID"),
			),
			packageArg,
		),
		s.handleAppReset,
	)
}

// appArgs returns device_id and the package, falling back to the target
// package when package_name is omitted.
func (s *MCPServer) appArgs(request mcp.CallToolRequest) (string, string, error) {
	args := request.GetArguments()
	deviceID, err := requiredString(args, "device_id")
	if err != nil {
		return "", "", err
	}
	packageName, _ := args["package_name"].(string)
	if packageName == "" {
		packageName = s.app.GetTargetPackage()
	}
	if packageName == "" {
		return "", "", fmt.Errorf("package_name is required (no target package set)")
	}
	return deviceID, packageName, nil
}

func (s *MCPServer) handleAppStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, packageName, err := s.appArgs(request)
	if err != nil {
		return nil, err
	}
	result, err := s.app.StartApp(deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to start app: %w", err)
	}
	return textResult(fmt.Sprintf("Started %s\n%s", packageName, result)), nil
}

func (s *MCPServer) handleAppStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, packageName, err := s.appArgs(request)
	if err != nil {
		return nil, err
	}
	result, err := s.app.ForceStopApp(deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to stop app: %w", err)
	}
	return textResult(fmt.Sprintf("Stopped %s\n%s", packageName, result)), nil
}

func (s *MCPServer) handleAppRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, packageName, err := s.appArgs(request)
	if err != nil {
		return nil, err
	}
	result, err := s.app.RestartApp(deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to restart app: %w", err)
	}
	return textResult(fmt.Sprintf("Restarted %s\n%s", packageName, result)), nil
}

// Dangerous operations - require confirmation

func (s *MCPServer) handleAppClearData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, packageName, err := s.appArgs(request)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.requestConfirmation(ctx, "Clear App Data",
		fmt.Sprintf("Device: %s\nPackage: %s\n\nThis will delete all app data including saved files, settings, and cache!", deviceID, packageName))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return textResult("Clear data cancelled by user"), nil
	}

	result, err := s.app.ClearAppData(deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to clear data: %w", err)
	}
	return textResult(fmt.Sprintf("Data cleared for %s\n%s", packageName, result)), nil
}

func (s *MCPServer) handleAppReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, packageName, err := s.appArgs(request)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.requestConfirmation(ctx, "Reset App",
		fmt.Sprintf("Device: %s\nPackage: %s\n\nThis clears all app data and relaunches the app.", deviceID, packageName))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return textResult("Reset cancelled by user"), nil
	}

	result, err := s.app.ResetApp(deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to reset app: %w", err)
	}
	return textResult(fmt.Sprintf("Reset %s\n%s", packageName, result)), nil
}
