package android

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakeShell answers commands from a table keyed by the joined argv.
type fakeShell struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeShell() *fakeShell {
	return &fakeShell{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeShell) on(cmd, reply string) *fakeShell {
	f.replies[cmd] = reply
	return f
}

func (f *fakeShell) fail(cmd string, err error) *fakeShell {
	f.errs[cmd] = err
	return f
}

func (f *fakeShell) Output(ctx context.Context, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if err, ok := f.errs[cmd]; ok {
		return "", err
	}
	if strings.HasPrefix(cmd, "settings put global http_proxy ") {
		f.replies["settings get global http_proxy"] = strings.TrimPrefix(cmd, "settings put global http_proxy ")
		return "", nil
	}
	reply, ok := f.replies[cmd]
	if !ok {
		return "", errors.New("unexpected command: " + cmd)
	}
	return reply, nil
}

func (f *fakeShell) ran(cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == cmd {
			return true
		}
	}
	return false
}

const dumpsysEnabled = `Wi-Fi is enabled
Stay-awake conditions: 0
mWifiInfo SSID: "Office", BSSID: 02:00:00:00:00:00, MAC: 02:00:00:00:00:00, Supplicant state: COMPLETED, RSSI: -50, Link speed: 72Mbps, Frequency: 2437MHz, Net ID: 1, Metered hint: false, score: 60
mDhcpResults null

WifiConfigManager - Log Begin ----
Configured networks Begin ----
 ID: 0 SSID: "Home" PROVIDER-NAME: null BSSID: null FQDN: null PRIO: 0 HIDDEN: false
 NetworkSelectionStatus NETWORK_SELECTION_ENABLED
IP assignment: DHCP
Proxy settings: NONE
 ID: 1 SSID: "Office" PROVIDER-NAME: null BSSID: null FQDN: null PRIO: 0 HIDDEN: false
IP assignment: DHCP
Proxy settings: STATIC
HTTP proxy: [10.0.0.1] 8888
Configured networks End ----
 ID: 1 SSID: "Office" PROVIDER-NAME: null BSSID: null FQDN: null PRIO: 0 HIDDEN: false
Proxy settings: NONE
`

const dumpsysDisabled = `Wi-Fi is disabled
mWifiInfo SSID: <unknown ssid>, Supplicant state: DISCONNECTED, Net ID: -1
`
