package goSession

import (
	"testing"

	"github.com/MrEthical07/goSession/storage"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want storage.Device
	}{
		{
			name: "empty",
			ua:   "",
			want: storage.Device{Class: storage.DeviceUnknown},
		},
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			want: storage.Device{Browser: "Chrome", OS: "Windows", Class: storage.DeviceDesktop},
		},
		{
			name: "edge is not chrome",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51",
			want: storage.Device{Browser: "Edge", OS: "Windows", Class: storage.DeviceDesktop},
		},
		{
			name: "safari on mac",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			want: storage.Device{Browser: "Safari", OS: "macOS", Class: storage.DeviceDesktop},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			want: storage.Device{Browser: "Firefox", OS: "Linux", Class: storage.DeviceDesktop},
		},
		{
			name: "android phone",
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
			want: storage.Device{Browser: "Chrome", OS: "Android", Class: storage.DeviceMobile},
		},
		{
			name: "android tablet",
			ua:   "Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			want: storage.Device{Browser: "Chrome", OS: "Android", Class: storage.DeviceTablet},
		},
		{
			name: "ipad",
			ua:   "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			want: storage.Device{Browser: "Safari", OS: "iPadOS", Class: storage.DeviceTablet},
		},
		{
			name: "crawler",
			ua:   "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			want: storage.Device{Class: storage.DeviceBot},
		},
		{
			name: "curl",
			ua:   "curl/8.6.0",
			want: storage.Device{Browser: "curl", Class: storage.DeviceBot},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDevice(tt.ua); got != tt.want {
				t.Fatalf("parseDevice(%q) = %+v, want %+v", tt.ua, got, tt.want)
			}
		})
	}
}
