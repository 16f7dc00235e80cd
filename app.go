package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"adtkit/pkg/android"
	"adtkit/pkg/cache"
	"adtkit/pkg/netkit"
	"adtkit/proxy"
)

const (
	AppName    = "adtkit"
	AppVersion = "0.4.0"

	// commandTimeout bounds one user-facing operation.
	commandTimeout = 30 * time.Second
)

// wifiBackend is the per-device platform behind the proxy controller.
type wifiBackend interface {
	netkit.Radio
	netkit.RecordStore
	SetWifiEnabled(ctx context.Context, on bool) error
	OpenWifiSettings(ctx context.Context) error
}

// deviceWifi pairs a device's controller with its backend. mu serializes
// controller calls, which arrive from both the CLI and MCP handlers.
type deviceWifi struct {
	mu      sync.Mutex
	ctl     *netkit.Controller
	backend wifiBackend
}

// AppOptions configures NewApp.
type AppOptions struct {
	ConfigDir string
	AdbPath   string
	Simulate  bool
	// AdbRate caps adb invocations per second; 0 disables the limit.
	AdbRate float64
	// Notify receives user-facing notices such as the unsupported
	// platform message.
	Notify func(msg string)
}

// App struct
type App struct {
	ctx     context.Context
	cancel  context.CancelFunc
	adbPath string
	version string

	// runAdb executes one adb invocation and returns combined output.
	runAdb     func(ctx context.Context, args ...string) (string, error)
	adbLimiter *rate.Limiter

	settings *cache.Service
	history  *ProxyHistoryStore
	watcher  *SettingsWatcher
	notify   func(msg string)

	sim *simDevice

	ctlMu       sync.Mutex
	controllers map[string]*deviceWifi

	captureMu     sync.Mutex
	capture       *proxy.Server
	captureDevice string
	captureHost   string
}

// NewApp creates a new App instance
func NewApp(opts AppOptions) (*App, error) {
	settings, err := cache.New(cache.Config{ConfigDir: opts.ConfigDir, Logger: ModuleLogger("settings")})
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	a := &App{
		version:     AppVersion,
		settings:    settings,
		notify:      opts.Notify,
		controllers: make(map[string]*deviceWifi),
	}
	if opts.AdbRate > 0 {
		a.adbLimiter = rate.NewLimiter(rate.Limit(opts.AdbRate), 1)
	}

	if opts.Simulate {
		a.sim = newSimDevice()
		a.runAdb = a.sim.runAdb
	} else {
		a.adbPath = opts.AdbPath
		if a.adbPath == "" {
			a.adbPath = findAdb()
		}
		a.runAdb = a.execAdb
	}
	return a, nil
}

// Startup opens the history store and starts the settings watcher.
func (a *App) Startup(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	history, err := OpenProxyHistory(a.settings.HistoryPath())
	if err != nil {
		return fmt.Errorf("open proxy history: %w", err)
	}
	a.history = history

	watcher, err := NewSettingsWatcher(a.settings)
	if err != nil {
		LogWarn("settings").Err(err).Msg("settings hot reload disabled")
	} else {
		a.watcher = watcher
		a.watcher.Start(a.ctx)
	}

	LogDebug("app").Str("adb", a.adbPath).Bool("simulate", a.sim != nil).Str("config", a.settings.ConfigDir()).Msg("app started")
	return nil
}

// Shutdown is called when the application is closing
func (a *App) Shutdown() {
	if err := a.StopCapture(); err != nil {
		LogWarn("capture").Err(err).Msg("stopping capture on shutdown")
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			LogWarn("history").Err(err).Msg("closing history")
		}
	}
	_ = a.settings.Close()
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

func (a *App) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// opContext bounds a single user-facing operation.
func (a *App) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.context(), commandTimeout)
}

func (a *App) updateLastActive(deviceId string) {
	if deviceId == "" {
		return
	}
	a.settings.SetLastActive(deviceId, time.Now().Unix())
}

// ========================================
// adb plumbing
// ========================================

func findAdb() string {
	if path, err := exec.LookPath("adb"); err == nil {
		return path
	}
	if sdk := os.Getenv("ANDROID_HOME"); sdk != "" {
		return sdk + string(os.PathSeparator) + "platform-tools" + string(os.PathSeparator) + "adb"
	}
	return "adb"
}

// newAdbCommand creates an exec.Cmd with a clean environment to avoid proxy issues
func (a *App) newAdbCommand(ctx context.Context, args ...string) *exec.Cmd {
	var cmd *exec.Cmd
	if ctx != nil {
		cmd = exec.CommandContext(ctx, a.adbPath, args...)
	} else {
		cmd = exec.Command(a.adbPath, args...)
	}

	env := os.Environ()
	newEnv := make([]string, 0, len(env))
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			newEnv = append(newEnv, e)
		}
	}
	cmd.Env = newEnv
	return cmd
}

func (a *App) execAdb(ctx context.Context, args ...string) (string, error) {
	if a.adbPath == "" {
		return "", fmt.Errorf("ADB path is not initialized")
	}
	output, err := a.newAdbCommand(ctx, args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("adb %s: %w, output: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// adb runs one throttled adb invocation.
func (a *App) adb(ctx context.Context, args ...string) (string, error) {
	if a.adbLimiter != nil {
		if err := a.adbLimiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return a.runAdb(ctx, args...)
}

// adbShell adapts App to android.Shell for one device.
type adbShell struct {
	app      *App
	deviceId string
}

func (s *adbShell) Output(ctx context.Context, args ...string) (string, error) {
	return s.app.adb(ctx, append([]string{"-s", s.deviceId, "shell"}, args...)...)
}

// ========================================
// Proxy controllers
// ========================================

var errNoDevice = errors.New("no device specified")

// wifi returns the cached controller for a device, building it on first
// use. The unsupported-platform notice is therefore shown once per device
// per process.
func (a *App) wifi(ctx context.Context, deviceId string) (*deviceWifi, error) {
	if deviceId == "" {
		return nil, errNoDevice
	}
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	a.ctlMu.Lock()
	defer a.ctlMu.Unlock()
	if dw, ok := a.controllers[deviceId]; ok {
		return dw, nil
	}

	log := ModuleLogger("network").With().Str("device", deviceId).Logger()
	notifier := netkit.NotifierFunc(func(msg string) {
		LogWarn("network").Str("device", deviceId).Msg(msg)
		if a.notify != nil {
			a.notify(msg)
		}
	})

	var (
		backend    wifiBackend
		capability netkit.ProxyCapability
	)
	if a.sim != nil {
		if deviceId != a.sim.id {
			return nil, fmt.Errorf("unknown simulated device %q", deviceId)
		}
		backend = a.sim
		capability = a.sim.Capability()
	} else {
		dev := android.NewDevice(&adbShell{app: a, deviceId: deviceId}, ModuleLogger("android").With().Str("device", deviceId).Logger())
		c, err := dev.Capability(ctx)
		if err != nil {
			return nil, fmt.Errorf("probe proxy capability: %w", err)
		}
		backend, capability = dev, c
	}

	dw := &deviceWifi{
		ctl:     netkit.NewController(backend, backend, capability, netkit.WithLogger(log), netkit.WithNotifier(notifier)),
		backend: backend,
	}
	a.controllers[deviceId] = dw
	return dw, nil
}
