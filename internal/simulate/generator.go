package simulate

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var resolutions = []string{
	"1920x1080", "1366x768", "1440x900", "1536x864",
	"2560x1440", "3840x2160", "390x844", "412x915",
}

var botAgents = []string{
	"python-requests/2.31.0",
	"curl/8.4.0",
	"Go-http-client/1.1",
	"Mozilla/5.0 (compatible; HeadlessChrome/120.0)",
}

// Device is one simulated browser.
type Device struct {
	UserAgent        string
	IP               string
	ScreenResolution string
	Timezone         string
	Language         string
	Theme            string
	Bot              bool
}

// Preferences mirrors the API preference object.
type Preferences struct {
	Theme    string `json:"theme,omitempty"`
	Language string `json:"language,omitempty"`
}

// Visit is one POST /v1/visits body plus the device it came from.
type Visit struct {
	EventID          string       `json:"event_id"`
	VisitorID        string       `json:"visitor_id,omitempty"`
	UserAgent        string       `json:"user_agent"`
	ScreenResolution string       `json:"screen_resolution"`
	Timezone         string       `json:"timezone"`
	Timestamp        int64        `json:"timestamp"`
	Preferences      *Preferences `json:"preferences,omitempty"`

	Device int    `json:"-"`
	IP     string `json:"-"`
	Retry  bool   `json:"-"`
}

// Generator produces devices and visits from a seeded faker.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a Generator. Equal seeds yield equal sequences.
func NewGenerator(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Devices creates n devices, roughly botShare of them scripted.
func (g *Generator) Devices(n int, botShare float64) []Device {
	devices := make([]Device, n)
	for i := range devices {
		if g.faker.Float64() < botShare {
			devices[i] = Device{
				UserAgent:        g.faker.RandomString(botAgents),
				IP:               g.faker.IPv4Address(),
				ScreenResolution: "0x0",
				Bot:              true,
			}
			continue
		}
		devices[i] = Device{
			UserAgent:        g.userAgent(),
			IP:               g.faker.IPv4Address(),
			ScreenResolution: g.faker.RandomString(resolutions),
			Timezone:         g.faker.TimeZoneRegion(),
			Language:         g.faker.LanguageAbbreviation(),
			Theme:            g.faker.RandomString([]string{"light", "dark"}),
		}
	}
	return devices
}

func (g *Generator) userAgent() string {
	switch g.faker.IntRange(0, 4) {
	case 0:
		return g.faker.ChromeUserAgent()
	case 1:
		return g.faker.FirefoxUserAgent()
	case 2:
		return g.faker.SafariUserAgent()
	case 3:
		return g.faker.OperaUserAgent()
	default:
		return g.faker.UserAgent()
	}
}

// Visits spreads total visits over devices within the day before now.
// Bots visit in bursts inside a single hour. retryShare of the visits are
// followed by a copy carrying the same event id.
func (g *Generator) Visits(devices []Device, total int, now time.Time, retryShare float64) []Visit {
	if len(devices) == 0 || total <= 0 {
		return nil
	}

	visits := make([]Visit, 0, total+int(float64(total)*retryShare)+1)
	burst := now.Add(-time.Duration(g.faker.IntRange(1, 23)) * time.Hour)

	for i := 0; i < total; i++ {
		idx := i % len(devices)
		if i >= len(devices) {
			idx = g.faker.IntRange(0, len(devices)-1)
		}
		d := devices[idx]

		at := now.Add(-time.Duration(g.faker.IntRange(0, 24*60-1)) * time.Minute)
		if d.Bot {
			at = burst.Add(time.Duration(g.faker.IntRange(0, 59)) * time.Minute)
		}

		v := Visit{
			EventID:          uuid.NewString(),
			UserAgent:        d.UserAgent,
			ScreenResolution: d.ScreenResolution,
			Timezone:         d.Timezone,
			Timestamp:        at.UnixMilli(),
			Device:           idx,
			IP:               d.IP,
		}
		if !d.Bot {
			v.Preferences = &Preferences{Theme: d.Theme, Language: d.Language}
		}
		visits = append(visits, v)

		if g.faker.Float64() < retryShare {
			retry := v
			retry.Retry = true
			visits = append(visits, retry)
		}
	}
	return visits
}

// String renders a device for verbose logs.
func (d Device) String() string {
	kind := "human"
	if d.Bot {
		kind = "bot"
	}
	return fmt.Sprintf("%s %s %s", kind, d.IP, d.ScreenResolution)
}
