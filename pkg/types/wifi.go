package types

// WifiStatus is the WiFi and proxy state of one device.
type WifiStatus struct {
	DeviceID    string `json:"deviceId"`
	WifiEnabled bool   `json:"wifiEnabled"`
	IP          string `json:"ip"`
	NetworkID   int    `json:"networkId"`
	SSID        string `json:"ssid,omitempty"`
	Supported   bool   `json:"supported"`
	Capability  string `json:"capability"`
	ProxyHost   string `json:"proxyHost"`
	ProxyPort   string `json:"proxyPort"`
}

// WifiProxyResult reports the outcome of a proxy change.
type WifiProxyResult struct {
	DeviceID string `json:"deviceId"`
	Outcome  string `json:"outcome"` // applied, wifi_off, no_active_network, unsupported, failed
	Message  string `json:"message,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// ProxyHistoryEntry is one recorded proxy change.
type ProxyHistoryEntry struct {
	ID        string `json:"id"`
	DeviceID  string `json:"deviceId"`
	Action    string `json:"action"` // "set" or "clear"
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	Outcome   string `json:"outcome"`
	CreatedAt int64  `json:"createdAt"` // unix ms
}

// CaptureStatus describes the host-side capture proxy.
type CaptureStatus struct {
	Running   bool   `json:"running"`
	DeviceID  string `json:"deviceId,omitempty"`
	HostIP    string `json:"hostIp,omitempty"`
	Port      int    `json:"port,omitempty"`
	MITM      bool   `json:"mitm"`
	CertPath  string `json:"certPath,omitempty"`
	Requests  int64  `json:"requests"`
	BytesDown int64  `json:"bytesDown"`
}
