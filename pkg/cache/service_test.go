package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestServiceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	svc, err := New(Config{ConfigDir: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	svc.SetPinnedSerial("emulator-5554")
	svc.SetTargetPackage("com.example.app")
	svc.SetLastProxy("192.168.1.5", 8888)
	svc.SetLastActive("emulator-5554", 1700000000)
	if err := svc.SaveSettings(); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	reloaded, err := New(Config{ConfigDir: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := reloaded.GetPinnedSerial(); got != "emulator-5554" {
		t.Errorf("Expected pinned serial emulator-5554, got %q", got)
	}
	if got := reloaded.GetTargetPackage(); got != "com.example.app" {
		t.Errorf("Expected target package com.example.app, got %q", got)
	}
	host, port := reloaded.LastProxy()
	if host != "192.168.1.5" || port != 8888 {
		t.Errorf("Expected 192.168.1.5:8888, got %s:%d", host, port)
	}
	if got := reloaded.GetLastActive("emulator-5554"); got != 1700000000 {
		t.Errorf("Expected last active 1700000000, got %d", got)
	}
}

func TestServiceIgnoresCorruptSettings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	svc, err := New(Config{ConfigDir: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if svc.GetTargetPackage() != "" {
		t.Error("Expected empty settings after corrupt file")
	}
	// Writes must still work on the zero settings.
	svc.SetLastActive("x", 1)
}

func TestSnapshotIsCopy(t *testing.T) {
	svc, err := New(Config{ConfigDir: t.TempDir(), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	svc.SetLastActive("a", 1)
	snap := svc.Snapshot()
	snap.LastActive["a"] = 99
	if svc.GetLastActive("a") != 1 {
		t.Error("Expected snapshot mutation not to leak into the service")
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	svc, err := New(Config{ConfigDir: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if svc.ConfigDir() != dir {
		t.Errorf("Expected %s, got %s", dir, svc.ConfigDir())
	}
	if svc.SettingsPath() != filepath.Join(dir, "settings.json") {
		t.Errorf("Unexpected settings path %s", svc.SettingsPath())
	}
	if svc.HistoryPath() != filepath.Join(dir, "history.db") {
		t.Errorf("Unexpected history path %s", svc.HistoryPath())
	}
}
