package netkit

import (
	"context"
	"fmt"
)

// MinProxySDK is the first Android API level (Lollipop) that exposes a
// per-network proxy setting.
const MinProxySDK = 21

// Result carries either a value or the reason the call failed.
// Callers only branch on success or failure.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail records why the call did not complete.
func Fail[T any](reason error) Result[T] {
	return Result[T]{Err: reason}
}

// Failed reports whether r carries an error.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Done is the value type of results that carry no data.
type Done struct{}

// ProxyCapability reads and writes the proxy field of a saved network
// through a platform surface that is not part of the stable API.
type ProxyCapability interface {
	// Name identifies the variant in logs.
	Name() string
	// Supported is false for the null-object variant.
	Supported() bool
	ReadProxy(ctx context.Context, rec NetworkRecord) Result[ProxyInfo]
	WriteProxy(ctx context.Context, rec NetworkRecord, setting ProxySetting, info ProxyInfo) Result[Done]
}

// Variant binds a capability implementation to an API level range.
// MaxSDK of 0 means open-ended.
type Variant struct {
	Name   string
	MinSDK int
	MaxSDK int
	New    func() ProxyCapability
}

func (v Variant) matches(sdk int) bool {
	if sdk < v.MinSDK {
		return false
	}
	return v.MaxSDK == 0 || sdk <= v.MaxSDK
}

// SelectCapability picks the first variant covering sdk. Levels below
// MinProxySDK, and levels no variant covers, get Unsupported.
func SelectCapability(sdk int, variants []Variant) ProxyCapability {
	if sdk < MinProxySDK {
		return Unsupported{}
	}
	for _, v := range variants {
		if v.matches(sdk) && v.New != nil {
			return v.New()
		}
	}
	return Unsupported{}
}

// Unsupported is the capability used on platforms without a proxy field.
// Reads fail, writes are accepted and do nothing.
type Unsupported struct{}

func (Unsupported) Name() string    { return "unsupported" }
func (Unsupported) Supported() bool { return false }

func (Unsupported) ReadProxy(context.Context, NetworkRecord) Result[ProxyInfo] {
	return Fail[ProxyInfo](ErrUnsupportedPlatform)
}

func (Unsupported) WriteProxy(context.Context, NetworkRecord, ProxySetting, ProxyInfo) Result[Done] {
	return Ok(Done{})
}

// validateProxy checks a desired direct proxy before it reaches the platform.
func validateProxy(info ProxyInfo) error {
	if info.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidProxy)
	}
	if info.Port < 1 || info.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidProxy, info.Port)
	}
	return nil
}
