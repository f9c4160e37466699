package goSession

import (
	"strings"

	"github.com/MrEthical07/goSession/storage"
)

type uaRule struct {
	token string
	name  string
}

// Order matters: Edge and Opera carry "Chrome", Chrome carries "Safari".
var browserRules = []uaRule{
	{"edg/", "Edge"},
	{"edge/", "Edge"},
	{"opr/", "Opera"},
	{"opera", "Opera"},
	{"samsungbrowser/", "Samsung Internet"},
	{"firefox/", "Firefox"},
	{"fxios/", "Firefox"},
	{"crios/", "Chrome"},
	{"chrome/", "Chrome"},
	{"chromium/", "Chromium"},
	{"safari/", "Safari"},
	{"msie ", "Internet Explorer"},
	{"trident/", "Internet Explorer"},
	{"curl/", "curl"},
}

var osRules = []uaRule{
	{"windows", "Windows"},
	{"iphone", "iOS"},
	{"ipad", "iPadOS"},
	{"ipod", "iOS"},
	{"android", "Android"},
	{"cros", "ChromeOS"},
	{"mac os x", "macOS"},
	{"macintosh", "macOS"},
	{"linux", "Linux"},
}

var botTokens = []string{"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests", "go-http-client"}

// parseDevice derives coarse client metadata from a User-Agent string.
func parseDevice(userAgent string) storage.Device {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return storage.Device{Class: storage.DeviceUnknown}
	}

	d := storage.Device{
		Browser: firstRule(ua, browserRules),
		OS:      firstRule(ua, osRules),
	}

	switch {
	case containsAny(ua, botTokens):
		d.Class = storage.DeviceBot
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		d.Class = storage.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod"):
		d.Class = storage.DeviceMobile
	case d.OS != "":
		d.Class = storage.DeviceDesktop
	default:
		d.Class = storage.DeviceUnknown
	}
	return d
}

func firstRule(ua string, rules []uaRule) string {
	for _, r := range rules {
		if strings.Contains(ua, r.token) {
			return r.name
		}
	}
	return ""
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
