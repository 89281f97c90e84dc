// Package model contains the domain values passed between layers.
package model

import "strings"

// Browser is a coarse browser family label.
type Browser string

// Browser families in one-hot order. Unknown is always last.
const (
	BrowserChrome  Browser = "Chrome"
	BrowserFirefox Browser = "Firefox"
	BrowserSafari  Browser = "Safari"
	BrowserEdge    Browser = "Edge"
	BrowserOpera   Browser = "Opera"
	BrowserUnknown Browser = "Unknown"
)

// Browsers lists every family in the fixed order used by feature vectors.
var Browsers = []Browser{
	BrowserChrome,
	BrowserFirefox,
	BrowserSafari,
	BrowserEdge,
	BrowserOpera,
	BrowserUnknown,
}

// Index returns the position of b in Browsers; unrecognized labels map to Unknown.
func (b Browser) Index() int {
	for i, candidate := range Browsers {
		if candidate == b {
			return i
		}
	}
	return len(Browsers) - 1
}

// ParseBrowser maps a free-form label onto a known family, case-insensitively.
func ParseBrowser(label string) Browser {
	label = strings.TrimSpace(label)
	for _, b := range Browsers {
		if strings.EqualFold(label, string(b)) {
			return b
		}
	}
	return BrowserUnknown
}

// DetectBrowser classifies a user-agent string. The checks run in a fixed
// order because Chromium-based agents also advertise Safari and Chrome tokens.
func DetectBrowser(userAgent string) Browser {
	switch {
	case userAgent == "":
		return BrowserUnknown
	case strings.Contains(userAgent, "Firefox/"):
		return BrowserFirefox
	case strings.Contains(userAgent, "OPR/") || strings.Contains(userAgent, "Opera"):
		return BrowserOpera
	case strings.Contains(userAgent, "Edg/"):
		return BrowserEdge
	case strings.Contains(userAgent, "Chrome/"):
		return BrowserChrome
	case strings.Contains(userAgent, "Safari/"):
		return BrowserSafari
	default:
		return BrowserUnknown
	}
}
