// Package clientip derives a best-guess client address from proxy headers.
// The result feeds analytics only and must never be used for access control.
package clientip

import (
	"net"
	"strings"

	"github.com/axellelanca/clicktrail/internal/models"
)

// headerPrecedence lists the single-value proxy headers, highest priority first.
// X-Forwarded-For is handled after these: only its first entry is used.
var headerPrecedence = []string{
	"CF-Connecting-IP",
	"X-Azure-ClientIP",
	"X-Real-IP",
	"X-Client-IP",
}

// Extract returns the client address, or false when none is usable.
// Loopback addresses count as absent so the caller can fall back to external discovery.
func Extract(meta models.RequestMetadata) (string, bool) {
	return clean(candidate(meta))
}

func candidate(meta models.RequestMetadata) string {
	for _, name := range headerPrecedence {
		if v := strings.TrimSpace(meta.Headers.Get(name)); v != "" {
			return v
		}
	}

	if fwd := meta.Headers.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	return peerHost(meta.RemoteAddr)
}

// peerHost strips the port from a transport peer address, tolerating addresses without one.
func peerHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.Trim(remoteAddr, "[]")
}

func clean(addr string) (string, bool) {
	addr = strings.TrimPrefix(strings.TrimSpace(addr), "::ffff:")
	if addr == "" || IsLoopback(addr) {
		return "", false
	}
	return addr, true
}

// IsLoopback reports whether addr is one of the loopback forms treated as absent.
func IsLoopback(addr string) bool {
	switch strings.ToLower(addr) {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}
