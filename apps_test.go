package main

import (
	"strings"
	"testing"
)

func TestAppFailed(t *testing.T) {
	tests := []struct {
		output string
		failed bool
	}{
		{"Success\n", false},
		{"Events injected: 1\n", false},
		{"Failed\n", true},
		{"Failure [DELETE_FAILED_INTERNAL_ERROR]", true},
		{"Error: Activity not started", true},
		{"java.lang.SecurityException: Permission Denial", true},
		{"** No activities found to run, monkey aborted.", true},
	}
	for _, tt := range tests {
		if got := appFailed(tt.output); got != tt.failed {
			t.Errorf("appFailed(%q): expected %v, got %v", tt.output, tt.failed, got)
		}
	}
}

func TestResetApp(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.ResetApp(simDeviceID, "com.example.app"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !app.sim.ranCommand("-s " + simDeviceID + " shell pm clear com.example.app") {
		t.Error("Expected pm clear")
	}
	if !app.sim.ranCommand("-s " + simDeviceID + " shell monkey -p com.example.app -c android.intent.category.LAUNCHER 1") {
		t.Error("Expected monkey launch")
	}
	if app.settings.GetLastActive(simDeviceID) == 0 {
		t.Error("Expected device to be marked active")
	}
}

func TestRestartApp(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.RestartApp(simDeviceID, "com.example.app"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !app.sim.ranCommand("-s " + simDeviceID + " shell am force-stop com.example.app") {
		t.Error("Expected am force-stop")
	}
}

func TestAppCommands_UnknownPackage(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.ClearAppData(simDeviceID, "com.missing"); err == nil {
		t.Error("Expected ClearAppData to fail for a missing package")
	}
	if _, err := app.StartApp(simDeviceID, "com.missing"); err == nil {
		t.Error("Expected StartApp to fail for a missing package")
	}
	_, err := app.ResetApp(simDeviceID, "com.missing")
	if err == nil {
		t.Fatal("Expected ResetApp to fail for a missing package")
	}
	if !strings.Contains(err.Error(), "clear data") {
		t.Errorf("Expected the clear step to fail, got %v", err)
	}
}

func TestTargetPackageFallback(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.StartApp(simDeviceID, ""); err == nil {
		t.Error("Expected error with no package and no target")
	}

	if err := app.SetTargetPackage("  com.example.app "); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := app.GetTargetPackage(); got != "com.example.app" {
		t.Errorf("Expected trimmed target package, got %q", got)
	}
	if _, err := app.StartApp(simDeviceID, ""); err != nil {
		t.Errorf("Expected target package to be used, got %v", err)
	}
}

func TestAppCommands_NoDevice(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.ForceStopApp("", "com.example.app"); err == nil {
		t.Error("Expected error with no device")
	}
	if _, err := app.ForceStopApp("bad;id", "com.example.app"); err == nil {
		t.Error("Expected error for invalid device id")
	}
}

func TestOpenSettings(t *testing.T) {
	app := newTestApp(t)

	out, err := app.OpenSettings(simDeviceID, "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "android.settings.SETTINGS") {
		t.Errorf("Expected default settings action, got %s", out)
	}

	if _, err := app.OpenSettings(simDeviceID, "android.settings.APPLICATION_DETAILS_SETTINGS", "package:com.example.app"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !app.sim.ranCommand("-s " + simDeviceID + " shell am start -a android.settings.APPLICATION_DETAILS_SETTINGS -d package:com.example.app") {
		t.Error("Expected am start with data uri")
	}
}
