package netkit

import (
	"strconv"
	"strings"
	"testing"
	"testing/quick"
)

func TestFormatIP(t *testing.T) {
	tests := []struct {
		raw      uint32
		expected string
	}{
		{0, "0.0.0.0"},
		{0x0100007F, "127.0.0.1"},
		{0xFFFFFFFF, "255.255.255.255"},
		{0x0101A8C0, "192.168.1.1"},
		{0x0100000A, "10.0.0.1"},
	}

	for _, tt := range tests {
		if got := FormatIP(tt.raw); got != tt.expected {
			t.Errorf("FormatIP(%#x) = %q, expected %q", tt.raw, got, tt.expected)
		}
	}
}

func TestFormatIPOctetsRoundTrip(t *testing.T) {
	f := func(raw uint32) bool {
		parts := strings.Split(FormatIP(raw), ".")
		if len(parts) != 4 {
			return false
		}
		var rebuilt uint32
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || n > 255 {
				return false
			}
			rebuilt |= uint32(n) << (8 * i)
		}
		return rebuilt == raw
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestParseIP(t *testing.T) {
	raw, ok := ParseIP("127.0.0.1")
	if !ok || raw != 0x0100007F {
		t.Errorf("Expected 0x0100007F, got %#x (ok=%v)", raw, ok)
	}

	for _, bad := range []string{"", "1.2.3", "1.2.3.256", "a.b.c.d", "1.2.3.4.5", "-1.0.0.0"} {
		if _, ok := ParseIP(bad); ok {
			t.Errorf("ParseIP(%q) should fail", bad)
		}
	}

	f := func(raw uint32) bool {
		back, ok := ParseIP(FormatIP(raw))
		return ok && back == raw
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
