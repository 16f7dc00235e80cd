package netkit

import (
	"context"

	"github.com/rs/zerolog"
)

// ConnectionReader answers "is WiFi on" and "what is the active link".
// Every call queries the radio again; nothing is cached.
type ConnectionReader struct {
	radio Radio
	log   zerolog.Logger
}

func NewConnectionReader(radio Radio, log zerolog.Logger) *ConnectionReader {
	return &ConnectionReader{radio: radio, log: log}
}

// Enabled reports the radio on/off flag. A failed query reads as off.
func (r *ConnectionReader) Enabled(ctx context.Context) bool {
	on, err := r.radio.WifiEnabled(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("wifi state query failed")
		return false
	}
	return on
}

// Current returns the active connection, or the zero state when the radio
// is off or cannot be read.
func (r *ConnectionReader) Current(ctx context.Context) ConnectionState {
	if !r.Enabled(ctx) {
		return ConnectionState{}
	}
	state, err := r.radio.ConnectionInfo(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("wifi connection query failed")
		return ConnectionState{}
	}
	state.Enabled = true
	return state
}

// IP returns the active WiFi address, empty when the radio is off.
func (r *ConnectionReader) IP(ctx context.Context) string {
	state := r.Current(ctx)
	if !state.Enabled {
		return ""
	}
	return state.IP()
}
