package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Provider is one interchangeable geolocation source in the chain.
type Provider interface {
	// Name returns the provider name for logging and metrics.
	Name() string

	// Configured reports whether the provider's credential, if it needs one, is set.
	Configured() bool

	// Lookup returns a location for ip, or an error when the call failed or the
	// response did not pass the provider's validity check.
	Lookup(ctx context.Context, ip string) (Location, error)
}

const (
	DefaultIPAPIURL         = "http://ip-api.com/json"
	DefaultIPGeolocationURL = "https://api.ipgeolocation.io/ipgeo"
	DefaultIPStackURL       = "http://api.ipstack.com"
)

// HTTPProvider is a Provider backed by a JSON HTTP API. Each variant only differs
// by its URL shape and its response adapter.
type HTTPProvider struct {
	name       string
	credential string
	needsKey   bool
	client     *http.Client
	endpoint   func(ip string) string
	decode     func(body []byte) (Location, error)
}

// NewHTTPClient returns the client shared by providers. Per-attempt deadlines come
// from the chain's context, the client timeout is only a backstop.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Configured() bool { return !p.needsKey || p.credential != "" }

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	body, err := fetch(ctx, p.client, p.endpoint(ip))
	if err != nil {
		return Location{}, fmt.Errorf("%s: %w", p.name, err)
	}

	loc, err := p.decode(body)
	if err != nil {
		return Location{}, fmt.Errorf("%s: %w", p.name, err)
	}
	if loc.IP == "" {
		loc.IP = ip
	}
	return loc, nil
}

// ip-api.com: free, no key, 45 requests per minute.
type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
	Query   string `json:"query"`
}

// NewIPAPI returns the ip-api.com provider. An empty baseURL selects the public endpoint.
func NewIPAPI(client *http.Client, baseURL string) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	return &HTTPProvider{
		name:   "ip-api",
		client: client,
		endpoint: func(ip string) string {
			return fmt.Sprintf("%s/%s?fields=status,message,country,city,query", strings.TrimRight(baseURL, "/"), url.PathEscape(ip))
		},
		decode: func(body []byte) (Location, error) {
			var r ipAPIResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return Location{}, fmt.Errorf("failed to decode response: %w", err)
			}
			if r.Status != "success" {
				return Location{}, fmt.Errorf("lookup failed: %s", r.Message)
			}
			return Location{IP: r.Query, City: orUnknown(r.City), Country: orUnknown(r.Country)}, nil
		},
	}
}

type ipGeolocationResponse struct {
	Message     string `json:"message"`
	IP          string `json:"ip"`
	City        string `json:"city"`
	CountryName string `json:"country_name"`
}

// NewIPGeolocation returns the ipgeolocation.io provider, skipped when apiKey is empty.
func NewIPGeolocation(client *http.Client, baseURL, apiKey string) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultIPGeolocationURL
	}
	return &HTTPProvider{
		name:       "ipgeolocation",
		credential: apiKey,
		needsKey:   true,
		client:     client,
		endpoint: func(ip string) string {
			q := url.Values{"apiKey": {apiKey}, "ip": {ip}}
			return baseURL + "?" + q.Encode()
		},
		decode: func(body []byte) (Location, error) {
			var r ipGeolocationResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return Location{}, fmt.Errorf("failed to decode response: %w", err)
			}
			if r.Message != "" {
				return Location{}, fmt.Errorf("lookup failed: %s", r.Message)
			}
			return Location{IP: r.IP, City: orUnknown(r.City), Country: orUnknown(r.CountryName)}, nil
		},
	}
}

type ipStackResponse struct {
	Error       json.RawMessage `json:"error"`
	IP          string          `json:"ip"`
	City        string          `json:"city"`
	CountryName string          `json:"country_name"`
}

// NewIPStack returns the ipstack.com provider, skipped when accessKey is empty.
func NewIPStack(client *http.Client, baseURL, accessKey string) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultIPStackURL
	}
	return &HTTPProvider{
		name:       "ipstack",
		credential: accessKey,
		needsKey:   true,
		client:     client,
		endpoint: func(ip string) string {
			q := url.Values{"access_key": {accessKey}}
			return fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), url.PathEscape(ip), q.Encode())
		},
		decode: func(body []byte) (Location, error) {
			var r ipStackResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return Location{}, fmt.Errorf("failed to decode response: %w", err)
			}
			if len(r.Error) > 0 && string(r.Error) != "null" {
				return Location{}, fmt.Errorf("lookup failed: %s", r.Error)
			}
			return Location{IP: r.IP, City: orUnknown(r.City), Country: orUnknown(r.CountryName)}, nil
		},
	}
}
