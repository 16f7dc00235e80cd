package netkit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// NotSupportedNotice is shown once per controller on platforms without a
// proxy capability.
const NotSupportedNotice = "current device does not support proxy setup"

// Outcome describes what a SetEnabled call did. It is informational:
// every outcome other than Applied leaves the device unchanged.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeWifiOff         Outcome = "wifi_off"
	OutcomeNoActiveNetwork Outcome = "no_active_network"
	OutcomeUnsupported     Outcome = "unsupported"
	OutcomeFailed          Outcome = "failed"
)

// Status is a combined read of the controller state.
type Status struct {
	WifiEnabled bool            `json:"wifiEnabled"`
	IP          string          `json:"ip"`
	Connection  ConnectionState `json:"connection"`
	Supported   bool            `json:"supported"`
	Capability  string          `json:"capability"`
	Network     *NetworkRecord  `json:"network,omitempty"`
	Proxy       ProxyInfo       `json:"proxy"`
}

// Controller exposes the WiFi proxy operations for one device.
// It is meant to be driven from a single goroutine.
type Controller struct {
	reader     *ConnectionReader
	store      RecordStore
	capability ProxyCapability
	notifier   Notifier
	log        zerolog.Logger

	noticeOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func NewController(radio Radio, store RecordStore, capability ProxyCapability, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		capability: capability,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capability == nil {
		c.capability = Unsupported{}
	}
	c.reader = NewConnectionReader(radio, c.log)
	return c
}

// Reader returns the connection reader the controller consults.
func (c *Controller) Reader() *ConnectionReader {
	return c.reader
}

// Capability returns the selected capability variant.
func (c *Controller) Capability() ProxyCapability {
	return c.capability
}

// IsEnabled reports whether the WiFi radio is on.
func (c *Controller) IsEnabled(ctx context.Context) bool {
	return c.reader.Enabled(ctx)
}

// SetEnabled enables (STATIC + info) or disables (NONE) the direct proxy
// on the active saved network.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool, info ProxyInfo) Outcome {
	log := c.log.With().Bool("enabled", enabled).Str("proxy", info.String()).Logger()

	state := c.reader.Current(ctx)
	if !state.Enabled {
		log.Debug().Msg("wifi off, proxy unchanged")
		return OutcomeWifiOff
	}

	if !c.capability.Supported() {
		c.notifyUnsupported()
		c.capability.WriteProxy(ctx, NetworkRecord{}, ProxyNone, ProxyInfo{})
		return OutcomeUnsupported
	}

	setting, desired := ProxyNone, ProxyInfo{}
	if enabled {
		if err := validateProxy(info); err != nil {
			log.Warn().Err(err).Msg("proxy request rejected")
			return OutcomeFailed
		}
		setting, desired = ProxyStatic, info
	}

	rec, ok := c.activeRecord(ctx, state)
	if !ok {
		log.Info().Int("networkId", state.NetworkID).Msg("active network is not a saved network")
		return OutcomeNoActiveNetwork
	}

	res := c.capability.WriteProxy(ctx, rec, setting, desired)
	if res.Failed() {
		log.Warn().Err(res.Err).Str("capability", c.capability.Name()).Int("networkId", rec.ID).Msg("proxy write abandoned")
		return OutcomeFailed
	}

	if err := c.store.SaveConfiguration(ctx); err != nil {
		log.Warn().Err(err).Msg("save configuration request failed")
	}
	if err := c.store.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("disconnect request failed")
	}
	if err := c.store.Reconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("reconnect request failed")
	}

	log.Info().Int("networkId", rec.ID).Str("setting", setting.String()).Msg("proxy updated")
	return OutcomeApplied
}

// Host returns the active network's proxy host, or "".
func (c *Controller) Host(ctx context.Context) string {
	return c.currentProxy(ctx).Host
}

// Port returns the active network's proxy port as text, or "".
func (c *Controller) Port(ctx context.Context) string {
	return c.currentProxy(ctx).PortString()
}

// Proxy returns the active network's direct proxy, zero when none.
func (c *Controller) Proxy(ctx context.Context) ProxyInfo {
	return c.currentProxy(ctx)
}

// Status gathers radio, record and proxy state in one pass.
func (c *Controller) Status(ctx context.Context) Status {
	st := Status{
		Supported:  c.capability.Supported(),
		Capability: c.capability.Name(),
	}
	state := c.reader.Current(ctx)
	st.WifiEnabled = state.Enabled
	st.Connection = state
	if !state.Enabled {
		return st
	}
	st.IP = state.IP()
	rec, ok := c.activeRecord(ctx, state)
	if !ok {
		return st
	}
	st.Network = &rec
	if st.Supported {
		st.Proxy = c.readProxy(ctx, rec)
	}
	return st
}

func (c *Controller) currentProxy(ctx context.Context) ProxyInfo {
	if !c.capability.Supported() {
		return ProxyInfo{}
	}
	state := c.reader.Current(ctx)
	if !state.Enabled {
		return ProxyInfo{}
	}
	rec, ok := c.activeRecord(ctx, state)
	if !ok {
		return ProxyInfo{}
	}
	return c.readProxy(ctx, rec)
}

func (c *Controller) readProxy(ctx context.Context, rec NetworkRecord) ProxyInfo {
	res := c.capability.ReadProxy(ctx, rec)
	if res.Failed() {
		c.log.Warn().Err(res.Err).Str("capability", c.capability.Name()).Int("networkId", rec.ID).Msg("proxy read failed")
		return ProxyInfo{}
	}
	return res.Value
}

func (c *Controller) activeRecord(ctx context.Context, state ConnectionState) (NetworkRecord, bool) {
	if !state.Enabled {
		return NetworkRecord{}, false
	}
	records, err := c.store.ConfiguredNetworks(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("saved network query failed")
		return NetworkRecord{}, false
	}
	return FindActive(records, state.NetworkID)
}

func (c *Controller) notifyUnsupported() {
	c.noticeOnce.Do(func() {
		c.log.Info().Msg(NotSupportedNotice)
		if c.notifier != nil {
			c.notifier.Notify(NotSupportedNotice)
		}
	})
}
