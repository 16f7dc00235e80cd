package types

// Device represents an Android device
type Device struct {
	ID         string `json:"id"`
	Serial     string `json:"serial"`
	State      string `json:"state"`
	Model      string `json:"model"`
	Product    string `json:"product"`
	Type       string `json:"type"` // "wired" or "wireless"
	LastActive int64  `json:"lastActive"`
	IsPinned   bool   `json:"isPinned"`
}

// DeviceInfo contains detailed device information
type DeviceInfo struct {
	Model        string `json:"model"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`
	AndroidVer   string `json:"androidVer"`
	SDK          int    `json:"sdk"`
	ABI          string `json:"abi"`
	Serial       string `json:"serial"`
	WifiIP       string `json:"wifiIp"`
}
