package netkit

import (
	"context"
	"errors"
	"sync"
)

// MemoryDevice is an in-process stand-in for an Android device. It backs
// the -simulate mode and the package tests.
type MemoryDevice struct {
	mu sync.Mutex

	SDK        int
	wifiOn     bool
	networkID  int
	rawAddress uint32
	records    []NetworkRecord

	// HideProxyAPI makes the capability lookup fail, as on a build
	// that removed the hidden setter.
	HideProxyAPI bool
	// RejectWrites makes the capability invocation fail after lookup.
	RejectWrites bool

	Writes      int
	Saves       int
	Disconnects int
	Reconnects  int
}

// NewMemoryDevice returns a device with WiFi on and no saved networks.
func NewMemoryDevice(sdk int) *MemoryDevice {
	return &MemoryDevice{SDK: sdk, wifiOn: true, networkID: -1}
}

// SetWifi turns the simulated radio on or off.
func (d *MemoryDevice) SetWifi(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wifiOn = on
}

// Connect associates the radio with network id at the given address.
func (d *MemoryDevice) Connect(id int, ip string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.networkID = id
	d.rawAddress, _ = ParseIP(ip)
}

// AddNetwork saves a network record.
func (d *MemoryDevice) AddNetwork(rec NetworkRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
}

// Network returns a copy of the saved record with the given id.
func (d *MemoryDevice) Network(id int) (NetworkRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FindActive(d.records, id)
}

func (d *MemoryDevice) WifiEnabled(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wifiOn, nil
}

func (d *MemoryDevice) ConnectionInfo(ctx context.Context) (ConnectionState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.wifiOn {
		return ConnectionState{NetworkID: -1}, nil
	}
	return ConnectionState{Enabled: true, NetworkID: d.networkID, RawAddress: d.rawAddress}, nil
}

func (d *MemoryDevice) ConfiguredNetworks(ctx context.Context) ([]NetworkRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]NetworkRecord, len(d.records))
	copy(out, d.records)
	return out, nil
}

func (d *MemoryDevice) SaveConfiguration(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Saves++
	return nil
}

func (d *MemoryDevice) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Disconnects++
	return nil
}

func (d *MemoryDevice) Reconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reconnects++
	return nil
}

// Variants returns the capability table for this device.
func (d *MemoryDevice) Variants() []Variant {
	return []Variant{{
		Name:   "memory",
		MinSDK: MinProxySDK,
		New:    func() ProxyCapability { return &memoryCapability{dev: d} },
	}}
}

// Capability selects the variant matching the device SDK level.
func (d *MemoryDevice) Capability() ProxyCapability {
	return SelectCapability(d.SDK, d.Variants())
}

var errMemoryRejected = errors.New("invocation rejected")

type memoryCapability struct {
	dev *MemoryDevice
}

func (c *memoryCapability) Name() string    { return "memory" }
func (c *memoryCapability) Supported() bool { return true }

func (c *memoryCapability) ReadProxy(ctx context.Context, rec NetworkRecord) Result[ProxyInfo] {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.dev.HideProxyAPI {
		return Fail[ProxyInfo](&CapabilityError{Op: "getHttpProxy", Reason: errors.New("method not found")})
	}
	stored, ok := FindActive(c.dev.records, rec.ID)
	if !ok {
		return Fail[ProxyInfo](ErrNoActiveNetwork)
	}
	return Ok(stored.Proxy())
}

func (c *memoryCapability) WriteProxy(ctx context.Context, rec NetworkRecord, setting ProxySetting, info ProxyInfo) Result[Done] {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.dev.HideProxyAPI {
		return Fail[Done](&CapabilityError{Op: "setProxy", Reason: errors.New("method not found")})
	}
	if c.dev.RejectWrites {
		return Fail[Done](&CapabilityError{Op: "setProxy", Reason: errMemoryRejected})
	}
	for i := range c.dev.records {
		if c.dev.records[i].ID != rec.ID {
			continue
		}
		c.dev.records[i].ProxySetting = setting
		c.dev.records[i].ProxyHost = info.Host
		c.dev.records[i].ProxyPort = info.Port
		c.dev.Writes++
		return Ok(Done{})
	}
	return Fail[Done](ErrNoActiveNetwork)
}
