package netkit

import (
	"strconv"
	"strings"
)

// FormatIP renders a raw WiFi address as dotted-decimal text.
// Android stores the address least-significant byte first, so the low
// octet of raw becomes the first field.
func FormatIP(raw uint32) string {
	var b strings.Builder
	b.Grow(15)
	for i := 0; i < 4; i++ {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(int(raw >> (8 * i) & 0xFF)))
	}
	return b.String()
}

// ParseIP is the inverse of FormatIP.
func ParseIP(s string) (uint32, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return 0, false
	}
	var raw uint32
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, false
		}
		raw |= uint32(n) << (8 * i)
	}
	return raw, true
}
