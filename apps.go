package main

import (
	"fmt"
	"strings"
)

// appFailed reports whether pm/am/monkey printed a failure despite exiting 0.
func appFailed(output string) bool {
	return strings.Contains(output, "Failed") ||
		strings.Contains(output, "Failure") ||
		strings.Contains(output, "Error:") ||
		strings.Contains(output, "Exception") ||
		strings.Contains(output, "No activities found")
}

func (a *App) appCommand(deviceId, what string, args ...string) (string, error) {
	if deviceId == "" {
		return "", errNoDevice
	}
	if err := ValidateDeviceID(deviceId); err != nil {
		return "", err
	}
	a.updateLastActive(deviceId)

	ctx, cancel := a.opContext()
	defer cancel()
	output, err := a.adb(ctx, append([]string{"-s", deviceId, "shell"}, args...)...)
	if err != nil {
		return output, fmt.Errorf("failed to %s: %w", what, err)
	}
	if appFailed(output) {
		return output, fmt.Errorf("failed to %s: %s", what, strings.TrimSpace(output))
	}
	return output, nil
}

func (a *App) packageOrTarget(packageName string) (string, error) {
	if packageName == "" {
		packageName = a.settings.GetTargetPackage()
	}
	if packageName == "" {
		return "", fmt.Errorf("no package specified and no target package set")
	}
	return packageName, nil
}

// ClearAppData wipes the package's data (pm clear).
func (a *App) ClearAppData(deviceId, packageName string) (string, error) {
	pkg, err := a.packageOrTarget(packageName)
	if err != nil {
		return "", err
	}
	output, err := a.appCommand(deviceId, "clear data", "pm", "clear", pkg)
	LogUserAction(ActionAppClear, deviceId, map[string]interface{}{"package": pkg, "success": err == nil})
	return output, err
}

func (a *App) ForceStopApp(deviceId, packageName string) (string, error) {
	pkg, err := a.packageOrTarget(packageName)
	if err != nil {
		return "", err
	}
	return a.appCommand(deviceId, "stop app", "am", "force-stop", pkg)
}

// StartApp launches the package's launcher activity.
func (a *App) StartApp(deviceId, packageName string) (string, error) {
	pkg, err := a.packageOrTarget(packageName)
	if err != nil {
		return "", err
	}
	return a.appCommand(deviceId, "start app", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
}

// RestartApp force-stops and relaunches the package.
func (a *App) RestartApp(deviceId, packageName string) (string, error) {
	pkg, err := a.packageOrTarget(packageName)
	if err != nil {
		return "", err
	}
	timer := StartOperation("apps", "restart").AddDetail("device", deviceId).AddDetail("package", pkg)
	if _, err := a.ForceStopApp(deviceId, pkg); err != nil {
		timer.EndWithError(err)
		return "", err
	}
	output, err := a.StartApp(deviceId, pkg)
	if err != nil {
		timer.EndWithError(err)
	} else {
		timer.End()
	}
	LogUserAction(ActionAppRestart, deviceId, map[string]interface{}{"package": pkg, "success": err == nil})
	return output, err
}

// ResetApp clears the package's data and launches it fresh.
func (a *App) ResetApp(deviceId, packageName string) (string, error) {
	pkg, err := a.packageOrTarget(packageName)
	if err != nil {
		return "", err
	}
	timer := StartOperation("apps", "reset").AddDetail("device", deviceId).AddDetail("package", pkg)
	if _, err := a.ClearAppData(deviceId, pkg); err != nil {
		timer.EndWithError(err)
		return "", err
	}
	output, err := a.StartApp(deviceId, pkg)
	if err != nil {
		timer.EndWithError(err)
	} else {
		timer.End()
	}
	LogUserAction(ActionAppReset, deviceId, map[string]interface{}{"package": pkg, "success": err == nil})
	return output, err
}

// OpenSettings opens a system settings screen. An empty action opens the
// top-level settings page.
func (a *App) OpenSettings(deviceId string, action string, data string) (string, error) {
	if action == "" {
		action = "android.settings.SETTINGS"
	}
	args := []string{"am", "start", "-a", action}
	if data != "" {
		args = append(args, "-d", data)
	}
	return a.appCommand(deviceId, "open settings", args...)
}

func (a *App) GetTargetPackage() string {
	return a.settings.GetTargetPackage()
}

// SetTargetPackage remembers the package app commands default to.
func (a *App) SetTargetPackage(pkg string) error {
	a.settings.SetTargetPackage(strings.TrimSpace(pkg))
	LogUserAction(ActionSettingsChange, "", map[string]interface{}{"targetPackage": pkg})
	return a.settings.SaveSettings()
}
