package platforms

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

const defaultUserAgent = "keeper (metadata@libraries.io)"

// Client is the HTTP client shared by all platform adapters. Registry
// fetches retry transient failures with exponential backoff and are guarded
// by a per-host circuit breaker; existence probes are a single HEAD request
// with no retry and no redirect following, so callers can observe redirects.
type Client struct {
	http       *http.Client
	probe      *http.Client
	userAgent  string
	maxRetries uint64

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
		c.probe.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts for registry fetches.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client with a DNS-caching transport.
func NewClient(opts ...Option) *Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
			}
			return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		probe: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:  defaultUserAgent,
		maxRetries: 3,
		breakers:   make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and returns the response body. 429 and 5xx responses are
// retried with exponential backoff; 404 maps to an HTTPError satisfying
// IsNotFound. Repeated failures trip the circuit breaker for the host.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	breaker := c.breakerFor(hostOf(url))
	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s", hostOf(url))
	}

	var body []byte
	err := breaker.Call(func() error {
		var fetchErr error
		body, fetchErr = c.getWithRetry(ctx, url)
		return fetchErr
	}, 0)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Head issues one existence probe and returns the response status code.
// Redirects are not followed and nothing is retried: an inconclusive probe
// is the caller's signal to leave state alone.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.probe.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			return err
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &HTTPError{StatusCode: resp.StatusCode, URL: url}
		default:
			return backoff.Permanent(&HTTPError{StatusCode: resp.StatusCode, URL: url})
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) breakerFor(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, ok := c.breakers[host]; ok {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[host] = breaker
	return breaker
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}
