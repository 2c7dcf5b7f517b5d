package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
)

// IPService is a self-IP endpoint used when a request carries no usable client address.
type IPService struct {
	Name    string
	URL     string
	Extract func(body []byte) (string, error)
}

// DefaultIPServices returns ipify, ipapi.co and httpbin, in that order.
func DefaultIPServices() []IPService {
	return []IPService{
		{Name: "ipify", URL: "https://api.ipify.org?format=json", Extract: ipField},
		{Name: "ipapi.co", URL: "https://ipapi.co/json", Extract: ipField},
		{Name: "httpbin", URL: "https://httpbin.org/ip", Extract: originField},
	}
}

func ipField(body []byte) (string, error) {
	var r struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return r.IP, nil
}

// originField reads httpbin's "origin", which lists every hop: the first one is ours.
func originField(body []byte) (string, error) {
	var r struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	first, _, _ := strings.Cut(r.Origin, ",")
	return strings.TrimSpace(first), nil
}

// Discoverer finds the server's public address through an ordered list of services.
type Discoverer struct {
	client   *http.Client
	timeout  time.Duration
	services []IPService
}

// NewDiscoverer creates a Discoverer; with no services it uses DefaultIPServices.
func NewDiscoverer(client *http.Client, timeout time.Duration, services ...IPService) *Discoverer {
	if len(services) == 0 {
		services = DefaultIPServices()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Discoverer{client: client, timeout: timeout, services: services}
}

// Discover asks each service once, in order, and returns the first valid address.
func (d *Discoverer) Discover(ctx context.Context) (string, error) {
	attempts := make([]attempt[string], 0, len(d.services))
	for _, s := range d.services {
		s := s
		attempts = append(attempts, attempt[string]{
			name: s.Name,
			run: func(ctx context.Context) (string, error) {
				body, err := fetch(ctx, d.client, s.URL)
				if err != nil {
					return "", err
				}
				ip, err := s.Extract(body)
				if err != nil {
					return "", err
				}
				if net.ParseIP(ip) == nil {
					return "", fmt.Errorf("invalid address %q", ip)
				}
				return ip, nil
			},
		})
	}

	ip, service, err := firstSuccess(ctx, "ip-discovery", d.timeout, attempts)
	if service == "" {
		if err == nil {
			err = errors.New("no discovery service configured")
		}
		return "", fmt.Errorf("%w: %v", customerrors.ErrNoAddress, err)
	}
	return ip, nil
}
