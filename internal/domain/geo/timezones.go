package geo

import (
	"strings"

	"github.com/okian/footprint/internal/domain/model"
)

var timezoneCountries = map[string][2]string{
	"America/New_York":               {"United States", "US"},
	"America/Chicago":                {"United States", "US"},
	"America/Denver":                 {"United States", "US"},
	"America/Los_Angeles":            {"United States", "US"},
	"America/Phoenix":                {"United States", "US"},
	"America/Anchorage":              {"United States", "US"},
	"America/Adak":                   {"United States", "US"},
	"America/Honolulu":               {"United States", "US"},
	"America/Detroit":                {"United States", "US"},
	"America/Boise":                  {"United States", "US"},
	"America/Indiana/Indianapolis":   {"United States", "US"},
	"America/Indiana/Knox":           {"United States", "US"},
	"America/Indiana/Marengo":        {"United States", "US"},
	"America/Indiana/Petersburg":     {"United States", "US"},
	"America/Indiana/Tell_City":      {"United States", "US"},
	"America/Indiana/Vevay":          {"United States", "US"},
	"America/Indiana/Vincennes":      {"United States", "US"},
	"America/Indiana/Winamac":        {"United States", "US"},
	"America/Kentucky/Louisville":    {"United States", "US"},
	"America/Kentucky/Monticello":    {"United States", "US"},
	"America/North_Dakota/Beulah":    {"United States", "US"},
	"America/North_Dakota/Center":    {"United States", "US"},
	"America/North_Dakota/New_Salem": {"United States", "US"},
	"Pacific/Honolulu":               {"United States", "US"},

	"America/Toronto":   {"Canada", "CA"},
	"America/Vancouver": {"Canada", "CA"},
	"America/Montreal":  {"Canada", "CA"},
	"America/Halifax":   {"Canada", "CA"},
	"America/Winnipeg":  {"Canada", "CA"},
	"America/Regina":    {"Canada", "CA"},
	"America/St_Johns":  {"Canada", "CA"},

	"Europe/London":    {"United Kingdom", "GB"},
	"Europe/Paris":     {"France", "FR"},
	"Europe/Berlin":    {"Germany", "DE"},
	"Europe/Rome":      {"Italy", "IT"},
	"Europe/Madrid":    {"Spain", "ES"},
	"Europe/Amsterdam": {"Netherlands", "NL"},
	"Europe/Zurich":    {"Switzerland", "CH"},
	"Europe/Brussels":  {"Belgium", "BE"},
	"Europe/Vienna":    {"Austria", "AT"},
	"Europe/Stockholm": {"Sweden", "SE"},

	"Asia/Tokyo":     {"Japan", "JP"},
	"Asia/Shanghai":  {"China", "CN"},
	"Asia/Singapore": {"Singapore", "SG"},
	"Asia/Dubai":     {"United Arab Emirates", "AE"},
	"Asia/Seoul":     {"South Korea", "KR"},
	"Asia/Hong_Kong": {"Hong Kong", "HK"},
	"Asia/Taipei":    {"Taiwan", "TW"},

	"Australia/Sydney":    {"Australia", "AU"},
	"Australia/Melbourne": {"Australia", "AU"},
	"Australia/Brisbane":  {"Australia", "AU"},
	"Australia/Perth":     {"Australia", "AU"},
	"Pacific/Auckland":    {"New Zealand", "NZ"},
}

// LookupTimezone maps an IANA zone name to its country. Region and city
// are never filled.
func LookupTimezone(zone string) (model.GeoResponse, bool) {
	c, ok := timezoneCountries[strings.TrimSpace(zone)]
	if !ok {
		return model.GeoResponse{}, false
	}
	return model.GeoResponse{Country: c[0], CountryCode: c[1]}, true
}
