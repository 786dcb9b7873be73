package submitter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/jsonx"
	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/types"
)

// cap on the rejected-response body kept for the log
const maxBodyBytes = 64 * 1024

// Options configures the validator client
type Options struct {
	URL         string
	Headers     map[string]string
	Timeout     time.Duration
	InsecureTLS bool
}

// Client posts solutions to the validator. It never retries.
type Client struct {
	url     string
	headers map[string]string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPClient builds the http.Client shared by the submitter and the balance checker
func NewHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // validator certificate does not match its host
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// New creates a validator client
func New(opts Options, log *logger.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		url:     opts.URL,
		headers: opts.Headers,
		client:  NewHTTPClient(opts.Timeout, opts.InsecureTLS),
		log:     log.Named("submitter"),
	}
}

// Deliver sends one solution and classifies the response
func (c *Client) Deliver(ctx context.Context, s *types.Solution) types.Outcome {
	body, err := jsonx.Marshal(s)
	if err != nil {
		// cannot happen for a flat struct of strings, and would not get better on retry
		return types.Outcome{Kind: types.PermanentFailure, Err: fmt.Errorf("marshal solution: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.Outcome{Kind: types.PermanentFailure, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.log.Infow("submitting", "solution", s.Solution, "address", s.Address)

	resp, err := c.client.Do(req)
	if err != nil {
		return failure(0, fmt.Errorf("%w: %v", fault.ErrTransport, err))
	}
	defer resp.Body.Close()

	return classify(resp)
}

func classify(resp *http.Response) types.Outcome {
	switch resp.StatusCode {
	case http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return types.Outcome{Kind: types.Success, StatusCode: resp.StatusCode}

	case http.StatusServiceUnavailable:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return failure(resp.StatusCode, fault.NewStatusError(resp.StatusCode, resp.Status, "", fault.ErrBackendBusy))

	default:
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		text := string(data)
		if err != nil {
			text = fmt.Sprintf("<read body: %v>", err)
		}
		return failure(resp.StatusCode, fault.NewStatusError(resp.StatusCode, resp.Status, text, fault.ErrBackendRejected))
	}
}

func failure(status int, err error) types.Outcome {
	kind := types.PermanentFailure
	if fault.IsRetryable(err) {
		kind = types.RetryableFailure
	}
	return types.Outcome{Kind: kind, StatusCode: status, Err: err}
}
