// Package httpclient provides the outbound HTTP client used to query image
// registries: scheme validation, a redirect cap, a token-bucket rate limit
// shared by all requests, and JSON decoding with a body size limit.
package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/composels/errors"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
	// maxBodyBytes bounds how much of a response body is decoded.
	maxBodyBytes = 4 << 20
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	UserAgent         string
	MaxRedirects      int
}

// Client is a rate-limited JSON-over-HTTP client.
type Client struct {
	http           *http.Client
	transport      *http.Transport
	limiter        *rate.Limiter
	userAgent      string
	allowedSchemes []string
	maxRedirects   int
}

// New creates a client with its own transport.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	c := &Client{
		transport:      transport,
		limiter:        limiter,
		userAgent:      opts.UserAgent,
		allowedSchemes: []string{"http", "https"},
		maxRedirects:   opts.MaxRedirects,
	}
	c.http = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return errors.Newf("stopped after %d redirects", c.maxRedirects)
			}
			if err := c.validateURL(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			return nil
		},
	}
	return c
}

// ValidateURL parses and validates a URL string before a request is built.
func (c *Client) ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}
	if u.Hostname() == "" {
		return errors.New("URL missing hostname")
	}
	return nil
}

// GetJSON waits for the rate limiter, issues a GET and decodes the JSON body
// into out. Non-2xx responses return an error wrapping ErrNotFound (404) or
// ErrServiceUnavailable (anything else).
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	u, err := c.ValidateURL(rawURL)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidRequest, err.Error())
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(errors.ErrTimeout, ctxErr.Error())
		}
		return errors.Wrap(errors.ErrServiceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, body)
		if resp.StatusCode == http.StatusNotFound {
			return errors.Wrapf(errors.ErrNotFound, "GET %s", u.Path)
		}
		return errors.Wrapf(errors.ErrServiceUnavailable, "GET %s: status %d", u.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode response from %s", u.Path)
	}
	return nil
}

// CloseIdleConnections closes keep-alive connections held by the transport.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}
