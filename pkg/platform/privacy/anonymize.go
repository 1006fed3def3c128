// Package privacy reduces personal data to forms that are safe to log.
package privacy

import (
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// AnonymizeIP zeroes the host part of an address: the last octet for IPv4
// (a /24) and everything past the /48 prefix for IPv6.
//
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// AnonymizeEmail keeps the first and last character of the local part and the
// domain: "jane.doe@example.com" -> "j******e@example.com". Local parts of two
// characters or fewer become "***". Input without "@" returns "***".
func AnonymizeEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}

	n := utf8.RuneCountInString(local)
	if n <= 2 {
		return "***@" + domain
	}

	runes := []rune(local)
	return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1]) + "@" + domain
}
