package android

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"adtkit/pkg/netkit"
)

// Variants lists the proxy capabilities available over adb, by API level.
func Variants(shell Shell) []netkit.Variant {
	return []netkit.Variant{
		{
			Name:   "settings-global",
			MinSDK: netkit.MinProxySDK,
			New:    func() netkit.ProxyCapability { return &globalProxy{shell: shell} },
		},
	}
}

// errRecordProxy: clearing the global proxy would uncover the record's own
// STATIC proxy, which the shell user cannot remove.
var errRecordProxy = errors.New("per-network proxy not writable over shell")

// globalProxy drives the proxy through Settings.Global.HTTP_PROXY, which
// the connectivity service applies to the active network. The shell user
// cannot write WifiConfiguration directly.
type globalProxy struct {
	shell Shell
}

func (g *globalProxy) Name() string    { return "settings-global" }
func (g *globalProxy) Supported() bool { return true }

func (g *globalProxy) lookup(ctx context.Context) (string, error) {
	out, err := g.shell.Output(ctx, "settings", "get", "global", "http_proxy")
	if err != nil {
		return "", &netkit.CapabilityError{Op: "settings get global http_proxy", Reason: err}
	}
	if failed(out) {
		return "", &netkit.CapabilityError{Op: "settings get global http_proxy", Reason: fmt.Errorf("%s", strings.TrimSpace(out))}
	}
	return out, nil
}

func (g *globalProxy) ReadProxy(ctx context.Context, rec netkit.NetworkRecord) netkit.Result[netkit.ProxyInfo] {
	out, err := g.lookup(ctx)
	if err != nil {
		return netkit.Fail[netkit.ProxyInfo](err)
	}
	if info := parseGlobalProxy(out); !info.IsZero() {
		return netkit.Ok(info)
	}
	return netkit.Ok(rec.Proxy())
}

func (g *globalProxy) WriteProxy(ctx context.Context, rec netkit.NetworkRecord, setting netkit.ProxySetting, info netkit.ProxyInfo) netkit.Result[netkit.Done] {
	if _, err := g.lookup(ctx); err != nil {
		return netkit.Fail[netkit.Done](err)
	}
	if setting == netkit.ProxyNone && rec.ProxySetting == netkit.ProxyStatic {
		return netkit.Fail[netkit.Done](&netkit.CapabilityError{Op: "setProxy", Reason: errRecordProxy})
	}

	value := ":0"
	switch setting {
	case netkit.ProxyStatic:
		value = info.Host + ":" + strconv.Itoa(info.Port)
	case netkit.ProxyNone:
	default:
		return netkit.Fail[netkit.Done](&netkit.CapabilityError{Op: "settings put global http_proxy", Reason: fmt.Errorf("mode %s not writable", setting)})
	}

	out, err := g.shell.Output(ctx, "settings", "put", "global", "http_proxy", value)
	if err != nil {
		return netkit.Fail[netkit.Done](&netkit.CapabilityError{Op: "settings put global http_proxy", Reason: err})
	}
	if failed(out) {
		return netkit.Fail[netkit.Done](&netkit.CapabilityError{Op: "settings put global http_proxy", Reason: fmt.Errorf("%s", strings.TrimSpace(out))})
	}
	return netkit.Ok(netkit.Done{})
}
