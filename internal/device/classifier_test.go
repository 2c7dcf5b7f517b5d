package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Empty(t *testing.T) {
	for _, ua := range []string{"", "   "} {
		assert.Equal(t, Info{Device: "unknown", Browser: "unknown", OS: "unknown"}, Classify(ua))
	}
}

func TestClassify_DesktopChrome(t *testing.T) {
	info := Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	assert.Equal(t, Desktop, info.Device)
	assert.Equal(t, "chrome", info.Browser)
	assert.Equal(t, "windows", info.OS)
}

func TestClassify_IPhone(t *testing.T) {
	info := Classify("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")

	assert.Equal(t, Mobile, info.Device)
	assert.Equal(t, "safari", info.Browser)
	assert.Equal(t, "ios", info.OS)
}

func TestClassify_AndroidPhone(t *testing.T) {
	info := Classify("Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")

	assert.Equal(t, Mobile, info.Device)
	assert.Equal(t, "android", info.OS)
}

func TestClassify_IPad(t *testing.T) {
	info := Classify("Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1")

	assert.Equal(t, Tablet, info.Device)
}

func TestClassify_UnparsableDefaultsToDesktop(t *testing.T) {
	info := Classify("???")

	assert.Equal(t, Desktop, info.Device)
	assert.NotEmpty(t, info.Browser)
	assert.NotEmpty(t, info.OS)
}

func TestClassify_AlwaysLowercase(t *testing.T) {
	for _, ua := range []string{
		"curl/8.4.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
	} {
		info := Classify(ua)
		for _, v := range []string{info.Device, info.Browser, info.OS} {
			assert.Equal(t, strings.ToLower(v), v)
			assert.NotEmpty(t, v)
		}
	}
}
