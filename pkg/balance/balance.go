// Package balance queries the validator for the tokens credited to an address.
package balance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/submitter"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 64 * 1024

// Options configures the balance endpoint
type Options struct {
	URL         string
	Headers     map[string]string
	Timeout     time.Duration
	InsecureTLS bool
	Interval    time.Duration // pause between polls
}

// Checker queries the balance endpoint
type Checker struct {
	url      string
	headers  map[string]string
	client   *http.Client
	interval time.Duration
	log      *logger.Logger
}

// New creates a balance checker
func New(opts Options, log *logger.Logger) (*Checker, error) {
	if opts.URL == "" {
		return nil, fault.ErrNoBalanceURL
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("balance url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Checker{
		url:      opts.URL,
		headers:  opts.Headers,
		client:   submitter.NewHTTPClient(opts.Timeout, opts.InsecureTLS),
		interval: opts.Interval,
		log:      log.Named("balance"),
	}, nil
}

// Check returns the response body of one balance query
func (c *Checker) Check(ctx context.Context, address string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("balance url: %w", err)
	}
	q := u.Query()
	q.Set("address", strings.ToLower(strings.TrimSpace(address)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fault.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", fault.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fault.NewStatusError(resp.StatusCode, resp.Status, string(data), fault.ErrUnexpectedStatus)
	}
	return string(data), nil
}

// Poll logs the balance of address at the configured interval until ctx is
// cancelled. Failed queries are logged and polling continues.
func (c *Checker) Poll(ctx context.Context, address string) {
	limiter := rate.NewLimiter(rate.Every(c.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		body, err := c.Check(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Errorw("balance query failed", "address", address, "error", err)
			continue
		}
		c.log.Infow("balance", "address", address, "response", strings.TrimSpace(body))
	}
}
