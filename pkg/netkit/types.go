package netkit

import (
	"context"
	"strconv"
	"strings"
)

// ProxySetting mirrors the platform's per-network proxy mode.
type ProxySetting int

const (
	ProxyNone ProxySetting = iota
	ProxyStatic
	ProxyUnassigned
	ProxyPAC
)

var proxySettingNames = [...]string{"NONE", "STATIC", "UNASSIGNED", "PAC"}

func (s ProxySetting) String() string {
	if s < 0 || int(s) >= len(proxySettingNames) {
		return "UNKNOWN"
	}
	return proxySettingNames[s]
}

// ParseProxySetting accepts the names printed by dumpsys.
func ParseProxySetting(s string) (ProxySetting, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range proxySettingNames {
		if name == s {
			return ProxySetting(i), true
		}
	}
	return ProxyUnassigned, false
}

// ConnectionState is a point-in-time snapshot of the WiFi link.
type ConnectionState struct {
	Enabled    bool   `json:"enabled"`
	NetworkID  int    `json:"networkId"`
	RawAddress uint32 `json:"rawAddress"`
}

// IP returns the dotted-decimal form of RawAddress.
func (s ConnectionState) IP() string {
	return FormatIP(s.RawAddress)
}

// NetworkRecord is a saved WiFi configuration owned by the platform.
type NetworkRecord struct {
	ID           int          `json:"id"`
	SSID         string       `json:"ssid,omitempty"`
	ProxySetting ProxySetting `json:"proxySetting"`
	ProxyHost    string       `json:"proxyHost,omitempty"`
	ProxyPort    int          `json:"proxyPort,omitempty"`
}

// Proxy returns the record's direct proxy, empty unless the record is STATIC.
func (r NetworkRecord) Proxy() ProxyInfo {
	if r.ProxySetting != ProxyStatic {
		return ProxyInfo{}
	}
	return ProxyInfo{Host: r.ProxyHost, Port: r.ProxyPort}
}

// ProxyInfo describes a direct HTTP proxy.
type ProxyInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (p ProxyInfo) IsZero() bool {
	return p.Host == "" && p.Port == 0
}

// PortString formats the port the way the controller reports it:
// empty when no proxy is set.
func (p ProxyInfo) PortString() string {
	if p.IsZero() {
		return ""
	}
	return strconv.Itoa(p.Port)
}

func (p ProxyInfo) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// Radio reports the state of the WiFi hardware.
type Radio interface {
	WifiEnabled(ctx context.Context) (bool, error)
	ConnectionInfo(ctx context.Context) (ConnectionState, error)
}

// RecordStore gives access to the platform's saved-network store.
// SaveConfiguration, Disconnect and Reconnect are requests; the platform
// completes them on its own schedule.
type RecordStore interface {
	ConfiguredNetworks(ctx context.Context) ([]NetworkRecord, error)
	SaveConfiguration(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// Notifier surfaces informational notices to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }
