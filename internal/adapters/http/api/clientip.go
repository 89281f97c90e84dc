package api

import (
	"net"
	"net/http"
	"strings"
)

// clientIPHeaders are consulted in order; X-Forwarded-For contributes its
// first entry.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
	"True-Client-IP",
}

// ClientIP returns the caller address used for geolocation: proxy headers
// first, then the ?ip= override, then the connection's remote address.
func ClientIP(r *http.Request) string {
	for _, h := range clientIPHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.URL.Query().Get("ip")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
