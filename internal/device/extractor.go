// Package device derives client IP, user agent and device class from an HTTP request.
package device

import (
	"net"
	"net/http"
	"strings"

	"github.com/jfkeci/job-board-sub000/internal/device/domain"
)

// Extract returns the device info of r. IP resolution order: first X-Forwarded-For entry,
// X-Real-IP, then the socket peer. A missing User-Agent leaves both UserAgent and DeviceType nil.
func Extract(r *http.Request) domain.Info {
	var info domain.Info
	if ua := r.Header.Get("User-Agent"); ua != "" {
		t := domain.Classify(ua)
		info.UserAgent = &ua
		info.DeviceType = &t
	}
	if ip := ClientIP(r); ip != "" {
		info.IPAddress = &ip
	}
	return info
}

// ClientIP returns the client IP for r, or "" when none can be determined.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if s := strings.TrimSpace(first); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
