package android

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"adtkit/pkg/netkit"
)

var (
	wifiStateRe   = regexp.MustCompile(`Wi-Fi is (enabled|disabled|enabling|disabling)`)
	netIDRe       = regexp.MustCompile(`Net ID: (-?\d+)`)
	wifiInfoIPRe  = regexp.MustCompile(`IP: /?(\d+\.\d+\.\d+\.\d+)`)
	inetRe        = regexp.MustCompile(`inet (\d+\.\d+\.\d+\.\d+)`)
	recordStartRe = regexp.MustCompile(`(?:^|[^A-Za-z])ID: (-?\d+) SSID: (?:"([^"]*)"|(\S+))`)
	proxyModeRe   = regexp.MustCompile(`Proxy settings: (\w+)`)
	httpProxyRe   = regexp.MustCompile(`HTTP proxy: \[([^\]]*)\] (\d+)`)
	listNetworkRe = regexp.MustCompile(`^(\d+)\s+(.+?)\s{2,}\S+$`)
)

func parseWifiEnabled(out string) (bool, error) {
	m := wifiStateRe.FindStringSubmatch(out)
	if m == nil {
		return false, fmt.Errorf("wifi state not found in dumpsys output")
	}
	return m[1] == "enabled", nil
}

type wifiInfo struct {
	networkID int
	ip        string
}

// parseWifiInfo extracts the active network id and address from the
// mWifiInfo line. A missing line means no association (id -1).
func parseWifiInfo(out string) wifiInfo {
	info := wifiInfo{networkID: -1}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "mWifiInfo") {
			continue
		}
		if m := netIDRe.FindStringSubmatch(line); m != nil {
			info.networkID, _ = strconv.Atoi(m[1])
		}
		if m := wifiInfoIPRe.FindStringSubmatch(line); m != nil {
			info.ip = m[1]
		}
		break
	}
	return info
}

func parseInetAddress(out string) string {
	if m := inetRe.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}

// parseConfiguredNetworks reads WifiConfiguration dumps. dumpsys can print
// the same configuration in several sections; the first block per id wins.
func parseConfiguredNetworks(out string) []netkit.NetworkRecord {
	var records []netkit.NetworkRecord
	seen := make(map[int]bool)
	current := -1

	for _, line := range strings.Split(out, "\n") {
		if m := recordStartRe.FindStringSubmatch(line); m != nil {
			id, err := strconv.Atoi(m[1])
			if err != nil || seen[id] {
				current = -1
				continue
			}
			seen[id] = true
			ssid := m[2]
			if ssid == "" {
				ssid = m[3]
			}
			records = append(records, netkit.NetworkRecord{
				ID:           id,
				SSID:         ssid,
				ProxySetting: netkit.ProxyUnassigned,
			})
			current = len(records) - 1
			continue
		}
		if current < 0 {
			continue
		}
		if m := proxyModeRe.FindStringSubmatch(line); m != nil {
			if s, ok := netkit.ParseProxySetting(m[1]); ok {
				records[current].ProxySetting = s
			}
			continue
		}
		if m := httpProxyRe.FindStringSubmatch(line); m != nil {
			records[current].ProxyHost = m[1]
			records[current].ProxyPort, _ = strconv.Atoi(m[2])
		}
	}
	return records
}

// parseListNetworks reads `cmd wifi list-networks`.
func parseListNetworks(out string) []netkit.NetworkRecord {
	var records []netkit.NetworkRecord
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		m := listNetworkRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		records = append(records, netkit.NetworkRecord{
			ID:           id,
			SSID:         strings.Trim(m[2], `"`),
			ProxySetting: netkit.ProxyUnassigned,
		})
	}
	return records
}

// parseGlobalProxy reads the value of Settings.Global.HTTP_PROXY.
// ":0" is the cleared value written by the disable path.
func parseGlobalProxy(value string) netkit.ProxyInfo {
	value = strings.TrimSpace(value)
	if value == "" || value == "null" || value == ":0" {
		return netkit.ProxyInfo{}
	}
	idx := strings.LastIndex(value, ":")
	if idx <= 0 {
		return netkit.ProxyInfo{}
	}
	port, err := strconv.Atoi(value[idx+1:])
	if err != nil || port == 0 {
		return netkit.ProxyInfo{}
	}
	return netkit.ProxyInfo{Host: value[:idx], Port: port}
}
