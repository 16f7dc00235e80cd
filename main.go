package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"adtkit/mcp"
	"adtkit/pkg/cache"
	"adtkit/proxy"
)

const usage = `adtkit - Android developer toolkit over adb

Usage:
  adtkit [flags] <command> [args]

Commands:
  devices                      list connected devices
  info                         device properties
  ip                           current WiFi address
  wifi status|on|off|settings|networks
  proxy get                    show the active network's proxy
  proxy set <host> <port>      set a direct proxy on the active network
  proxy off                    remove the proxy
  proxy last                   re-apply the last proxy that was set
  proxy history [n]            recent proxy changes
  app clear|stop|start|restart|reset [package]
  target [package]             show or set the default package
  adb-wifi on|off              switch adb between WiFi and USB
  capture [flags]              run the capture proxy and point the device at it
  capture cert                 push the capture CA to the device
  mcp                          serve the toolkit over MCP on stdio
  logs [n]                     tail the log file (needs -log-file)
  version

Flags:
`

type cli struct {
	app    *App
	device string
	json   bool
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		device    = fs.String("s", os.Getenv("ANDROID_SERIAL"), "device serial")
		simulate  = fs.Bool("simulate", false, "use a simulated device instead of adb")
		configDir = fs.String("config", "", "settings directory (default <user config>/adtkit)")
		adbPath   = fs.String("adb", "", "path to adb (default: PATH, then $ANDROID_HOME)")
		adbRate   = fs.Float64("adb-rate", 0, "max adb invocations per second, 0 for no limit")
		logLevel  = fs.String("log-level", "warn", "debug, info, warn or error")
		logFile   = fs.Bool("log-file", false, "also log to a rotating file in the settings directory")
		asJSON    = fs.Bool("json", false, "print results as JSON")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if *configDir == "" {
		*configDir = cache.DefaultConfigDir()
	}
	logCfg := DefaultLogConfig()
	if *logFile {
		logCfg = PersistentLogConfig(*configDir)
	}
	logCfg.Level = ParseLogLevel(*logLevel)
	logCfg.Output = stderr
	if err := InitLogger(logCfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer CloseLogger()

	app, err := NewApp(AppOptions{
		ConfigDir: *configDir,
		AdbPath:   *adbPath,
		Simulate:  *simulate,
		AdbRate:   *adbRate,
		Notify: func(msg string) {
			fmt.Fprintln(stderr, msg)
		},
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Startup(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	c := &cli{app: app, device: *device, json: *asJSON, stdout: stdout, stderr: stderr}
	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "devices":
		return c.devices()
	case "info":
		return c.withDevice(c.info)
	case "ip":
		return c.withDevice(func(id string) error {
			ip, err := c.app.GetDeviceIP(id)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"ip": ip}, ip)
		})
	case "wifi":
		return c.wifi(args)
	case "proxy":
		return c.proxy(args)
	case "app":
		return c.appCmd(args)
	case "target":
		return c.target(args)
	case "adb-wifi":
		return c.adbWifi(args)
	case "capture":
		return c.capture(ctx, args)
	case "mcp":
		return mcp.NewMCPServer(NewMCPBridge(c.app)).Start(ctx)
	case "logs":
		return c.logs(args)
	case "version":
		return c.print(map[string]string{"version": c.app.GetAppVersion()}, AppName+" "+c.app.GetAppVersion())
	}
	return fmt.Errorf("unknown command %q (run with -h for usage)", cmd)
}

// withDevice resolves -s (or the single/pinned device) before calling fn.
func (c *cli) withDevice(fn func(id string) error) error {
	id, err := c.app.ResolveDevice(c.device)
	if err != nil {
		return err
	}
	return fn(id)
}

// print writes v as JSON with -json, otherwise text.
func (c *cli) print(v interface{}, text string) error {
	if c.json {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprintln(c.stdout, text)
	return nil
}

func (c *cli) devices() error {
	devices, err := c.app.GetDevices()
	if err != nil {
		return err
	}
	var b strings.Builder
	if len(devices) == 0 {
		b.WriteString("No devices connected")
	}
	for i, d := range devices {
		if i > 0 {
			b.WriteString("\n")
		}
		pin := ""
		if d.IsPinned {
			pin = " (pinned)"
		}
		fmt.Fprintf(&b, "%-24s %-12s %-8s %s%s", d.ID, d.State, d.Type, d.Model, pin)
	}
	return c.print(devices, b.String())
}

func (c *cli) info(id string) error {
	info, err := c.app.GetDeviceInfo(id)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Model:        %s\nBrand:        %s\nManufacturer: %s\nAndroid:      %s (SDK %d)\nABI:          %s\nSerial:       %s\nWiFi IP:      %s",
		info.Model, info.Brand, info.Manufacturer, info.AndroidVer, info.SDK, info.ABI, info.Serial, orNone(info.WifiIP))
	return c.print(info, text)
}

func (c *cli) wifi(args []string) error {
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}
	return c.withDevice(func(id string) error {
		switch sub {
		case "status":
			st, err := c.app.GetWifiStatus(id)
			if err != nil {
				return err
			}
			return c.print(st, formatWifiStatus(st))
		case "on", "off":
			if err := c.app.SetWifiEnabled(id, sub == "on"); err != nil {
				return err
			}
			return c.print(map[string]bool{"wifiEnabled": sub == "on"}, "WiFi "+sub)
		case "settings":
			c.app.OpenWifiSettings(id)
			return c.print(map[string]bool{"opened": true}, "Opened WiFi settings")
		case "networks":
			records, err := c.app.ListWifiNetworks(id)
			if err != nil {
				return err
			}
			var b strings.Builder
			for i, r := range records {
				if i > 0 {
					b.WriteString("\n")
				}
				fmt.Fprintf(&b, "%3d  %-24s %-10s %s", r.ID, r.SSID, r.ProxySetting, formatProxy(r.ProxyHost, portString(r.ProxyPort)))
			}
			if len(records) == 0 {
				b.WriteString("No saved networks")
			}
			return c.print(records, b.String())
		}
		return fmt.Errorf("unknown wifi command %q", sub)
	})
}

func formatWifiStatus(st WifiStatus) string {
	if !st.WifiEnabled {
		return "WiFi:       off"
	}
	network := "not a saved network"
	if st.SSID != "" {
		network = fmt.Sprintf("%s (id %d)", st.SSID, st.NetworkID)
	}
	proxyLine := formatProxy(st.ProxyHost, st.ProxyPort)
	if !st.Supported {
		proxyLine = "unsupported on this device"
	}
	return fmt.Sprintf("WiFi:       on\nIP:         %s\nNetwork:    %s\nProxy:      %s\nCapability: %s",
		orNone(st.IP), network, proxyLine, st.Capability)
}

func (c *cli) proxy(args []string) error {
	if len(args) == 0 {
		args = []string{"get"}
	}
	if args[0] == "history" {
		limit := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid count %q", args[1])
			}
			limit = n
		}
		entries, err := c.app.GetWifiProxyHistory(c.device, limit)
		if err != nil {
			return err
		}
		var b strings.Builder
		for i, e := range entries {
			if i > 0 {
				b.WriteString("\n")
			}
			target := ""
			if e.Action == "set" {
				target = fmt.Sprintf(" %s:%d", e.Host, e.Port)
			}
			fmt.Fprintf(&b, "%s  %-16s %-5s%s -> %s", time.UnixMilli(e.CreatedAt).Format("2006-01-02 15:04:05"), e.DeviceID, e.Action, target, e.Outcome)
		}
		if len(entries) == 0 {
			b.WriteString("No proxy changes recorded")
		}
		return c.print(entries, b.String())
	}

	return c.withDevice(func(id string) error {
		switch args[0] {
		case "get":
			host, port, err := c.app.GetWifiProxy(id)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"host": host, "port": port}, formatProxy(host, port))
		case "set":
			if len(args) != 3 {
				return fmt.Errorf("usage: proxy set <host> <port>")
			}
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[2])
			}
			res, err := c.app.SetWifiProxy(id, args[1], port)
			if err != nil {
				return err
			}
			return c.result(res)
		case "off", "clear":
			res, err := c.app.ClearWifiProxy(id)
			if err != nil {
				return err
			}
			return c.result(res)
		case "last":
			res, err := c.app.ReapplyLastProxy(id)
			if err != nil {
				return err
			}
			return c.result(res)
		}
		return fmt.Errorf("unknown proxy command %q", args[0])
	})
}

// result prints a proxy outcome. Outcomes other than applied are not
// errors: the device is simply left unchanged.
func (c *cli) result(res WifiProxyResult) error {
	return c.print(res, res.Message)
}

func (c *cli) appCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: app clear|stop|start|restart|reset [package]")
	}
	pkg := ""
	if len(args) > 1 {
		pkg = args[1]
	}
	return c.withDevice(func(id string) error {
		var (
			out string
			err error
		)
		switch args[0] {
		case "clear":
			out, err = c.app.ClearAppData(id, pkg)
		case "stop":
			out, err = c.app.ForceStopApp(id, pkg)
		case "start":
			out, err = c.app.StartApp(id, pkg)
		case "restart":
			out, err = c.app.RestartApp(id, pkg)
		case "reset":
			out, err = c.app.ResetApp(id, pkg)
		default:
			return fmt.Errorf("unknown app command %q", args[0])
		}
		if err != nil {
			return err
		}
		return c.print(map[string]string{"output": strings.TrimSpace(out)}, strings.TrimSpace(out))
	})
}

func (c *cli) target(args []string) error {
	if len(args) == 0 {
		pkg := c.app.GetTargetPackage()
		return c.print(map[string]string{"targetPackage": pkg}, orNone(pkg))
	}
	if err := c.app.SetTargetPackage(args[0]); err != nil {
		return err
	}
	return c.print(map[string]string{"targetPackage": args[0]}, "Target package set to "+args[0])
}

func (c *cli) adbWifi(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: adb-wifi on|off")
	}
	return c.withDevice(func(id string) error {
		switch args[0] {
		case "on":
			addr, err := c.app.SwitchToWireless(id)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"address": addr}, "adb over WiFi: "+addr)
		case "off":
			out, err := c.app.SwitchToUSB(id)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"output": out}, out)
		}
		return fmt.Errorf("unknown adb-wifi command %q", args[0])
	})
}

func (c *cli) capture(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "cert" {
		return c.withDevice(func(id string) error {
			path, err := c.app.InstallCaptureCert(id)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"path": path}, "CA pushed to "+path+"; install it from the device's security settings")
		})
	}

	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaultPort := c.app.settings.Snapshot().CapturePort
	if defaultPort == 0 {
		defaultPort = proxy.DefaultPort
	}
	var (
		port     = fs.Int("port", defaultPort, "capture proxy port, 0 for any free port")
		mitm     = fs.Bool("mitm", false, "decrypt HTTPS with the adtkit CA")
		filter   = fs.String("filter", "", "only log URLs containing this text")
		duration = fs.Duration("duration", 0, "stop after this long (default: until interrupted)")
		up       = fs.Int("up", 0, "upload limit in bytes/s")
		down     = fs.Int("down", 0, "download limit in bytes/s")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return c.withDevice(func(id string) error {
		st, err := c.app.StartCapture(id, CaptureOptions{
			Port:          *port,
			MITM:          *mitm,
			URLFilter:     *filter,
			UploadLimit:   *up,
			DownloadLimit: *down,
			OnRequest: func(r proxy.RequestLog) {
				if c.json {
					json.NewEncoder(c.stdout).Encode(r)
					return
				}
				fmt.Fprintf(c.stdout, "%s %3d %s %s\n", r.Time, r.StatusCode, r.Method, r.URL)
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stderr, "Capturing %s via %s:%d (Ctrl-C to stop)\n", id, st.HostIP, st.Port)

		waitCtx := ctx
		if *duration > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, *duration)
			defer cancel()
		}
		<-waitCtx.Done()

		final := c.app.GetCaptureStatus()
		if err := c.app.StopCapture(); err != nil {
			return err
		}
		fmt.Fprintf(c.stderr, "Captured %d requests, %d bytes\n", final.Requests, final.BytesDown)
		return nil
	})
}

func (c *cli) logs(args []string) error {
	n := 50
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
		n = v
	}
	lines, err := ReadRecentLogs(n)
	if err != nil {
		return fmt.Errorf("%w (run with -log-file)", err)
	}
	return c.print(lines, strings.Join(lines, "\n"))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func portString(port int) string {
	if port == 0 {
		return ""
	}
	return strconv.Itoa(port)
}
