package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// ClientSummary reduces a User-Agent to "Browser on OS" for audit records.
// Browser and OS versions are dropped.
func ClientSummary(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown client"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			os = platform
		}
	}
	if browser == "" {
		browser = "unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	if ua.Bot() {
		return strings.TrimSpace(browser + " (bot)")
	}
	return strings.TrimSpace(browser + " on " + os)
}
