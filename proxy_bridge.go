package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"adtkit/pkg/cache"
	"adtkit/pkg/netkit"
	"adtkit/pkg/types"
	"adtkit/proxy"
)

type CaptureStatus = types.CaptureStatus

// captureHost is the address the device uses for the capture proxy. adb
// reverse tunnels it to the host, so no LAN route is needed.
const captureHost = "127.0.0.1"

const deviceCertPath = "/sdcard/Download/adtkit-ca.crt"

// CaptureOptions configures StartCapture.
type CaptureOptions struct {
	// Port 0 binds a free port.
	Port      int
	MITM      bool
	URLFilter string
	// UploadLimit and DownloadLimit are bytes per second; 0 is unlimited.
	UploadLimit   int
	DownloadLimit int
	// OnRequest, when set, receives every captured exchange.
	OnRequest func(proxy.RequestLog)
}

// StartCapture starts the host capture proxy, tunnels it to the device with
// adb reverse and points the device's WiFi proxy at it.
func (a *App) StartCapture(deviceId string, opts CaptureOptions) (CaptureStatus, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return CaptureStatus{}, err
	}
	LogUserAction(ActionCaptureStart, deviceId, map[string]interface{}{"port": opts.Port, "mitm": opts.MITM})

	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	if a.capture != nil && a.capture.IsRunning() {
		return a.captureStatusLocked(), fmt.Errorf("capture already running for %s", a.captureDevice)
	}

	srv := proxy.New(proxy.Config{
		ListenHost: captureHost,
		Port:       opts.Port,
		DataDir:    a.settings.ConfigDir(),
		MITM:       opts.MITM,
		URLFilter:  opts.URLFilter,
		Logger:     Logger,
	})
	srv.SetLimits(opts.UploadLimit, opts.DownloadLimit)

	onRequest := func(r proxy.RequestLog) {
		LogInfo("capture").
			Str("device", deviceId).
			Str("method", r.Method).
			Str("url", r.URL).
			Int("status", r.StatusCode).
			Int64("size", r.BodySize).
			Msg("request")
		if opts.OnRequest != nil {
			opts.OnRequest(r)
		}
	}
	if err := srv.Start(onRequest); err != nil {
		return CaptureStatus{}, fmt.Errorf("failed to start capture proxy: %w", err)
	}
	port := srv.Port()

	ctx, cancel := a.opContext()
	defer cancel()
	tcp := "tcp:" + strconv.Itoa(port)
	if _, err := a.adb(ctx, "-s", deviceId, "reverse", tcp, tcp); err != nil {
		a.stopServer(srv)
		return CaptureStatus{}, fmt.Errorf("adb reverse failed: %w", err)
	}

	res, err := a.applyProxy(deviceId, true, netkit.ProxyInfo{Host: captureHost, Port: port}, false)
	if err == nil && res.Outcome != string(netkit.OutcomeApplied) {
		err = fmt.Errorf("%s", res.Message)
	}
	if err != nil {
		a.adb(ctx, "-s", deviceId, "reverse", "--remove", tcp)
		a.stopServer(srv)
		return CaptureStatus{}, fmt.Errorf("point device at capture proxy: %w", err)
	}

	a.capture = srv
	a.captureDevice = deviceId
	a.captureHost = captureHost

	a.settings.Update(func(st *cache.Settings) { st.CapturePort = port })
	if err := a.settings.SaveSettings(); err != nil {
		LogWarn("settings").Err(err).Msg("saving capture port")
	}
	return a.captureStatusLocked(), nil
}

// StopCapture restores the device proxy and stops the capture server. It
// is a no-op when no capture is running.
func (a *App) StopCapture() error {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	if a.capture == nil {
		return nil
	}
	srv, deviceId := a.capture, a.captureDevice
	a.capture, a.captureDevice, a.captureHost = nil, "", ""
	port := srv.Port()

	LogUserAction(ActionCaptureStop, deviceId, map[string]interface{}{"requests": srv.Stats().Requests})

	var firstErr error
	if res, err := a.ClearWifiProxy(deviceId); err != nil {
		firstErr = err
	} else if res.Outcome != string(netkit.OutcomeApplied) {
		LogWarn("capture").Str("device", deviceId).Str("outcome", res.Outcome).Msg("device proxy not cleared")
	}

	ctx, cancel := a.opContext()
	defer cancel()
	if _, err := a.adb(ctx, "-s", deviceId, "reverse", "--remove", "tcp:"+strconv.Itoa(port)); err != nil {
		LogDebug("capture").Err(err).Msg("removing adb reverse")
	}

	if err := a.stopServer(srv); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) stopServer(srv *proxy.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// GetCaptureStatus reports the running capture, if any.
func (a *App) GetCaptureStatus() CaptureStatus {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	return a.captureStatusLocked()
}

func (a *App) captureStatusLocked() CaptureStatus {
	if a.capture == nil {
		return CaptureStatus{}
	}
	st := a.capture.Stats()
	return CaptureStatus{
		Running:   st.Running,
		DeviceID:  a.captureDevice,
		HostIP:    a.captureHost,
		Port:      a.capture.Port(),
		MITM:      st.MITM,
		CertPath:  st.CertPath,
		Requests:  st.Requests,
		BytesDown: st.BytesDown,
	}
}

// InstallCaptureCert pushes the capture CA to the device's Download folder,
// generating it first if needed. The user still has to trust it on the
// device.
func (a *App) InstallCaptureCert(deviceId string) (string, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return "", err
	}
	certMgr := proxy.NewCertManager(a.settings.ConfigDir(), ModuleLogger("capture"))
	if err := certMgr.EnsureCert(); err != nil {
		return "", fmt.Errorf("prepare capture CA: %w", err)
	}

	ctx, cancel := a.opContext()
	defer cancel()
	if _, err := a.adb(ctx, "-s", deviceId, "push", certMgr.CertPath, deviceCertPath); err != nil {
		return "", fmt.Errorf("push certificate: %w", err)
	}
	return deviceCertPath, nil
}
