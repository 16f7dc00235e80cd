package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// deviceFromURI extracts {deviceId} from adtkit://devices/{deviceId}[/...]
func deviceFromURI(uri string) (string, error) {
	rest := strings.TrimPrefix(uri, "adtkit://devices/")
	if rest == uri || rest == "" {
		return "", fmt.Errorf("invalid URI format: %s", uri)
	}
	deviceID, _, _ := strings.Cut(rest, "/")
	return deviceID, nil
}

// handleDevicesResource handles the adtkit://devices resource
func (s *MCPServer) handleDevicesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	devices, err := s.app.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return jsonResource(request.Params.URI, devices)
}

// handleDeviceInfoResource handles adtkit://devices/{deviceId}
func (s *MCPServer) handleDeviceInfoResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deviceID, err := deviceFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	info, err := s.app.GetDeviceInfo(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device info: %w", err)
	}
	return jsonResource(request.Params.URI, info)
}

// handleWifiResource handles adtkit://devices/{deviceId}/wifi
func (s *MCPServer) handleWifiResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deviceID, err := deviceFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	st, err := s.app.GetWifiStatus(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wifi status: %w", err)
	}
	return jsonResource(request.Params.URI, st)
}
