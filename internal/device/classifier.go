// Package device turns a User-Agent header into device class, browser and OS.
package device

import (
	"strings"

	"github.com/mileusna/useragent"

	"github.com/axellelanca/clicktrail/internal/models"
)

const (
	Desktop = "desktop"
	Mobile  = "mobile"
	Tablet  = "tablet"
)

// Info is the lowercase classification of a user agent.
type Info struct {
	Device  string
	Browser string
	OS      string
}

// Classify parses ua. Empty input yields "unknown" everywhere; a non-empty agent the
// parser cannot place as mobile or tablet counts as desktop.
func Classify(ua string) Info {
	if strings.TrimSpace(ua) == "" {
		return Info{Device: models.Unknown, Browser: models.Unknown, OS: models.Unknown}
	}

	parsed := useragent.Parse(ua)

	class := Desktop
	switch {
	case parsed.Tablet:
		class = Tablet
	case parsed.Mobile:
		class = Mobile
	}

	return Info{
		Device:  class,
		Browser: normalize(parsed.Name),
		OS:      normalize(parsed.OS),
	}
}

func normalize(s string) string {
	if s = strings.ToLower(strings.TrimSpace(s)); s == "" {
		return models.Unknown
	}
	return s
}
