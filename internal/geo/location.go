// Package geo resolves client addresses to a coarse location through an ordered
// chain of external providers, and discovers the server's public address when
// the request carries none.
package geo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/axellelanca/clicktrail/internal/models"
)

// UserAgent is sent to every provider.
const UserAgent = "clicktrail/1.0"

const maxBodyBytes = 64 << 10

// Location is a resolved coarse location.
type Location struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Sentinel is returned when no provider could locate an address.
func Sentinel(ip string) Location {
	return Location{IP: ip, City: models.Unknown, Country: models.Unknown}
}

// IsUnknown reports whether both fields hold the sentinel.
func (l Location) IsUnknown() bool {
	return l.City == models.Unknown && l.Country == models.Unknown
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return models.Unknown
	}
	return s
}

// IsPrivate reports whether ip is a private, loopback, link-local or unspecified address.
// Providers cannot locate these, so the chain is not consulted.
func IsPrivate(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// fetch issues a GET and returns the body of a 2xx response.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
