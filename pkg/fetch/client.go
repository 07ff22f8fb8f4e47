package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/auth"
	"github.com/fire-square/FireLaunch/pkg/logging"
	"github.com/fire-square/FireLaunch/pkg/metrics"
)

// MaxDocumentSize bounds manifest and index documents held in memory.
const MaxDocumentSize = 64 << 20

// ClientOptions configures a Client.
type ClientOptions struct {
	HTTPClient *http.Client
	// Credentials supplies bearer tokens for AuthHosts. Nil disables auth.
	Credentials *auth.Adapter
	AuthHosts   []string
	Retry       RetryPolicy
	UserAgent   string
	Logger      hclog.Logger
	Metrics     metrics.FetchMetrics
}

// Client performs GET requests with retry on transient failures.
type Client struct {
	http      *http.Client
	creds     *auth.Adapter
	authHosts map[string]bool
	retry     RetryPolicy
	userAgent string
	logger    hclog.Logger
	metrics   metrics.FetchMetrics
}

// NewClient builds a Client. Zero-valued options get defaults.
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   32,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	retry := opts.Retry
	if retry.Attempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	hosts := make(map[string]bool, len(opts.AuthHosts))
	for _, h := range opts.AuthHosts {
		hosts[strings.ToLower(h)] = true
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "FireLaunch"
	}
	return &Client{
		http:      httpClient,
		creds:     opts.Credentials,
		authHosts: hosts,
		retry:     retry,
		userAgent: ua,
		logger:    logging.OrNull(opts.Logger).Named("http"),
		metrics:   m,
	}
}

// Fetch downloads rawURL and passes the response body to consume.
// Connection failures, timeouts, 429 and 5xx responses, and errors reading
// the body are retried with exponential backoff; consume is called again
// with a fresh body on each try. Errors returned by consume itself are not
// retried.
func (c *Client) Fetch(ctx context.Context, rawURL string, consume func(io.Reader) error) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: invalid URL %q", ErrNoSource, rawURL)
	}

	authRefreshed := false
	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, u, consume, &authRefreshed)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		te, retryable := isTransient(err)
		if !retryable {
			return err
		}
		if attempt+1 >= c.retry.Attempts {
			return fmt.Errorf("%w: %s after %d attempts: %v", ErrExhaustedRetries, rawURL, attempt+1, err)
		}

		wait := c.retry.backoff(attempt)
		if te.reason == "auth_refreshed" {
			wait = 0
		}
		c.metrics.IncRetries(te.reason)
		c.logger.Debug("🔁 Retrying download", "url", rawURL, "attempt", attempt+1, "wait", wait, "error", err)
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
}

// Document downloads a small document into memory.
func (c *Client) Document(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := c.Fetch(ctx, rawURL, func(r io.Reader) error {
		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(r, MaxDocumentSize+1))
		if err != nil {
			return err
		}
		if n > MaxDocumentSize {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, rawURL, MaxDocumentSize)
		}
		data = buf.Bytes()
		return nil
	})
	return data, err
}

func (c *Client) attempt(ctx context.Context, u *url.URL, consume func(io.Reader) error, authRefreshed *bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	needsAuth := c.creds != nil && c.authHosts[strings.ToLower(u.Hostname())]
	if needsAuth {
		cred, err := c.creds.Credential(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{reason: "transport", err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized && needsAuth:
		if *authRefreshed {
			return fmt.Errorf("%w: %s rejected the refreshed credential", ErrUnauthenticated, u.Host)
		}
		*authRefreshed = true
		if _, err := c.creds.ForceRefresh(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return &transientError{reason: "auth_refreshed", err: errors.New("credential refreshed after 401")}
	case isRetryableStatus(resp.StatusCode):
		return &transientError{
			reason: fmt.Sprintf("status_%d", resp.StatusCode),
			err:    fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, u.Redacted(), resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, u.Redacted(), resp.StatusCode)
	}

	body := &bodyReader{r: resp.Body}
	if err := consume(body); err != nil {
		if body.err != nil && ctx.Err() == nil {
			return &transientError{reason: "body", err: fmt.Errorf("reading %s: %w", u.Redacted(), body.err)}
		}
		return err
	}
	return nil
}

// bodyReader remembers transport errors so they can be told apart from
// errors raised by the consumer.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}
