package netkit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestDevice(sdk int) *MemoryDevice {
	dev := NewMemoryDevice(sdk)
	dev.AddNetwork(NetworkRecord{ID: 0, SSID: "office"})
	dev.AddNetwork(NetworkRecord{ID: 2, SSID: "home"})
	dev.Connect(2, "192.168.1.23")
	return dev
}

func newTestController(dev *MemoryDevice, opts ...Option) *Controller {
	return NewController(dev, dev, dev.Capability(), opts...)
}

func TestControllerRoundTrip(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(28)
	c := newTestController(dev)

	if out := c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888}); out != OutcomeApplied {
		t.Fatalf("Expected applied, got %s", out)
	}
	if host := c.Host(ctx); host != "10.0.0.1" {
		t.Errorf("Expected host 10.0.0.1, got %q", host)
	}
	if port := c.Port(ctx); port != "8888" {
		t.Errorf("Expected port 8888, got %q", port)
	}

	rec, _ := dev.Network(2)
	if rec.ProxySetting != ProxyStatic {
		t.Errorf("Expected STATIC on active record, got %s", rec.ProxySetting)
	}
	other, _ := dev.Network(0)
	if other.ProxySetting != ProxyNone || other.ProxyHost != "" {
		t.Errorf("Inactive record should be untouched, got %+v", other)
	}

	if dev.Saves != 1 || dev.Disconnects != 1 || dev.Reconnects != 1 {
		t.Errorf("Expected one save/disconnect/reconnect, got %d/%d/%d", dev.Saves, dev.Disconnects, dev.Reconnects)
	}
}

func TestControllerDisableClearsProxy(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	c := newTestController(dev)

	c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888})
	if out := c.SetEnabled(ctx, false, ProxyInfo{}); out != OutcomeApplied {
		t.Fatalf("Expected applied, got %s", out)
	}
	if host := c.Host(ctx); host != "" {
		t.Errorf("Expected empty host, got %q", host)
	}
	if port := c.Port(ctx); port != "" {
		t.Errorf("Expected empty port, got %q", port)
	}
	rec, _ := dev.Network(2)
	if rec.ProxySetting != ProxyNone {
		t.Errorf("Expected NONE after disable, got %s", rec.ProxySetting)
	}
}

func TestControllerWifiOff(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	c := newTestController(dev)
	c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888})
	writes := dev.Writes

	dev.SetWifi(false)

	if c.IsEnabled(ctx) {
		t.Error("Expected wifi disabled")
	}
	if out := c.SetEnabled(ctx, false, ProxyInfo{}); out != OutcomeWifiOff {
		t.Errorf("Expected wifi_off, got %s", out)
	}
	if dev.Writes != writes {
		t.Error("No mutation should be issued while wifi is off")
	}
	if c.Host(ctx) != "" || c.Port(ctx) != "" {
		t.Error("Reads should be empty while wifi is off")
	}
	if ip := c.Reader().IP(ctx); ip != "" {
		t.Errorf("Expected empty IP, got %q", ip)
	}
}

func TestControllerUnsupportedPlatform(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(19)

	var notices []string
	c := newTestController(dev, WithNotifier(NotifierFunc(func(msg string) {
		notices = append(notices, msg)
	})))

	if c.Capability().Supported() {
		t.Fatal("SDK 19 should select the unsupported capability")
	}
	for i := 0; i < 3; i++ {
		if out := c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888}); out != OutcomeUnsupported {
			t.Errorf("Expected unsupported, got %s", out)
		}
	}
	if len(notices) != 1 || notices[0] != NotSupportedNotice {
		t.Errorf("Expected exactly one notice, got %v", notices)
	}
	if dev.Writes != 0 || dev.Saves != 0 || dev.Reconnects != 0 {
		t.Error("Unsupported platform must leave the store untouched")
	}
	if c.Host(ctx) != "" || c.Port(ctx) != "" {
		t.Error("Unsupported platform reads should be empty")
	}
}

func TestControllerNoActiveRecord(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	dev.Connect(9, "10.1.1.5")
	c := newTestController(dev)

	if out := c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888}); out != OutcomeNoActiveNetwork {
		t.Errorf("Expected no_active_network, got %s", out)
	}
	if dev.Writes != 0 {
		t.Error("No write expected without an active record")
	}
	if c.Host(ctx) != "" {
		t.Error("Expected empty host without an active record")
	}
}

func TestControllerCapabilityFailure(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	c := newTestController(dev)
	c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888})
	saves := dev.Saves

	dev.RejectWrites = true
	if out := c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.2", Port: 9999}); out != OutcomeFailed {
		t.Errorf("Expected failed, got %s", out)
	}
	rec, _ := dev.Network(2)
	if rec.ProxyHost != "10.0.0.1" || rec.ProxyPort != 8888 {
		t.Errorf("Failed write must leave prior proxy, got %+v", rec)
	}
	if dev.Saves != saves {
		t.Error("No persistence request expected after a failed write")
	}

	dev.HideProxyAPI = true
	if c.Host(ctx) != "" || c.Port(ctx) != "" {
		t.Error("Lookup failure should read as empty")
	}
}

func TestControllerRejectsInvalidProxy(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	c := newTestController(dev)

	for _, info := range []ProxyInfo{{Host: "", Port: 8888}, {Host: "h", Port: 0}, {Host: "h", Port: 70000}} {
		if out := c.SetEnabled(ctx, true, info); out != OutcomeFailed {
			t.Errorf("Expected failed for %+v, got %s", info, out)
		}
	}
	if dev.Writes != 0 {
		t.Error("Invalid requests must not reach the platform")
	}
}

func TestControllerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	dev := newTestDevice(30)
	dev.HideProxyAPI = true
	c := newTestController(dev, WithLogger(zerolog.New(&buf)))

	c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888})
	if !strings.Contains(buf.String(), "proxy write abandoned") {
		t.Errorf("Expected failure to be logged, got %s", buf.String())
	}
}

func TestControllerStatus(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(30)
	c := newTestController(dev)
	c.SetEnabled(ctx, true, ProxyInfo{Host: "10.0.0.1", Port: 8888})

	st := c.Status(ctx)
	if !st.WifiEnabled || !st.Supported {
		t.Errorf("Unexpected status flags: %+v", st)
	}
	if st.IP != "192.168.1.23" {
		t.Errorf("Expected IP 192.168.1.23, got %q", st.IP)
	}
	if st.Network == nil || st.Network.SSID != "home" {
		t.Errorf("Expected active network 'home', got %+v", st.Network)
	}
	if st.Proxy.String() != "10.0.0.1:8888" {
		t.Errorf("Expected proxy 10.0.0.1:8888, got %q", st.Proxy.String())
	}
}

type failingRadio struct{}

func (failingRadio) WifiEnabled(context.Context) (bool, error) {
	return false, errors.New("device offline")
}

func (failingRadio) ConnectionInfo(context.Context) (ConnectionState, error) {
	return ConnectionState{}, errors.New("device offline")
}

func TestConnectionReaderDegradesOnError(t *testing.T) {
	r := NewConnectionReader(failingRadio{}, zerolog.Nop())
	if r.Enabled(context.Background()) {
		t.Error("Failed query should read as disabled")
	}
	if st := r.Current(context.Background()); st != (ConnectionState{}) {
		t.Errorf("Expected zero state, got %+v", st)
	}
}
