// Package transport posts request bodies to the remote endpoint with a
// per-attempt timeout and a bounded number of retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alovak/topup-playground/internal/failure"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/exp/slog"
)

// DefaultRetryDelay is the wait between two attempts when Policy.Delay is unset.
const DefaultRetryDelay = time.Second

// Request is a single POST to send, possibly several times.
type Request struct {
	Endpoint string
	Body     string
	Header   http.Header
}

// Policy bounds one Send call: MaxRetries retries after the first attempt,
// each attempt limited to Timeout, with a fixed Delay in between.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	Delay      time.Duration
}

func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultRetryDelay
	}
	return p.Delay
}

type Client struct {
	HTTP   *http.Client
	logger *slog.Logger
}

// New returns a client. When hc is nil a client without connection reuse is
// used, so every attempt dials and closes its own connection.
func New(hc *http.Client, logger *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{HTTP: hc, logger: logger}
}

// Send posts req until it gets a 2xx response or the policy is exhausted and
// returns the response body. Failures are *failure.Error values tagged
// KindTimeout, KindNetwork or KindHTTPStatus, carrying the attempt count.
// A policy without a positive Timeout is rejected before anything is sent.
func (c *Client) Send(ctx context.Context, req Request, policy Policy) (string, error) {
	if policy.Timeout <= 0 {
		return "", failure.Validation("attempt timeout must be positive, got %s", policy.Timeout)
	}

	var (
		attempts int
		body     string
		lastErr  error
	)

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.delay()), uint64(maxRetries)),
		ctx,
	)

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(&failure.Error{Kind: failure.KindNetwork, Err: err})
		}
		attempts++
		res, err := c.attempt(ctx, req, policy.Timeout)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		body = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying request",
			slog.Int("attempt", attempts),
			slog.Int("max_retries", maxRetries),
			slog.Duration("wait", wait),
			slog.String("err", err.Error()),
		)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		return body, nil
	}

	var fe *failure.Error
	if !errors.As(err, &fe) {
		// context ended while waiting between attempts
		if lastErr == nil || !errors.As(lastErr, &fe) {
			fe = &failure.Error{Kind: failure.KindNetwork, Err: err}
		}
	}
	fe.Attempts = attempts
	return "", fe
}

func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, strings.NewReader(req.Body))
	if err != nil {
		return "", backoff.Permanent(&failure.Error{Kind: failure.KindNetwork, Err: fmt.Errorf("creating request: %w", err)})
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &failure.Error{
			Kind:       failure.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(ctx, fmt.Errorf("reading response: %w", err))
	}
	return string(b), nil
}

// classify tags an I/O error of one attempt. Deadline expiry of the attempt
// context and network timeouts are timeouts, everything else is network.
func classify(ctx context.Context, err error) *failure.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &failure.Error{Kind: failure.KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &failure.Error{Kind: failure.KindTimeout, Err: err}
	}
	return &failure.Error{Kind: failure.KindNetwork, Err: err}
}
