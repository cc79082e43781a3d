package qr

import "strings"

var schemes = []string{"http://", "https://"}

// Normalize trims the payload and prepends https:// to values that look like
// a bare host name. Phone numbers (leading "+") and values without a dot are
// returned unchanged.
func Normalize(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ""
	}
	for _, s := range schemes {
		if strings.HasPrefix(payload, s) {
			return payload
		}
	}
	if strings.Contains(payload, ".") && !strings.HasPrefix(payload, "+") {
		return "https://" + payload
	}
	return payload
}
