package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 1 << 20

// APIError is a non 2xx response from the server.
type APIError struct {
	Status    int
	Message   string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field"`
	Retryable bool   `json:"retryable"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// temporary reports whether the same request may succeed later. A plain 500
// is only retried when the server marks it retryable.
func (e *APIError) temporary() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.Retryable
}

type apiClient struct {
	baseURL   string
	http      *http.Client
	userAgent string
	maxTries  uint
}

func newAPIClient(globals *Globals) *apiClient {
	return &apiClient{
		baseURL:   strings.TrimRight(globals.Server, "/"),
		http:      globals.httpClient(),
		userAgent: "donations-cli/" + globals.Version,
		maxTries:  4,
	}
}

// withTokenSource returns a copy of the client that authenticates with ts.
func (c *apiClient) withTokenSource(ctx context.Context, ts oauth2.TokenSource) *apiClient {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	authed := *c
	authed.http = oauth2.NewClient(ctx, ts)
	authed.http.Timeout = c.http.Timeout
	return &authed
}

// request describes one call. body is kept as bytes so it can be replayed.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func jsonRequest(method, path string, in any) (request, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return request{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return request{method: method, path: path, contentType: "application/json", body: data}, nil
}

// do sends req and decodes a 2xx body into out. Responses the server marks
// retryable and connection failures are retried with exponential backoff.
func (c *apiClient) do(ctx context.Context, req request, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.once(ctx, req, out)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("path", req.path).Dur("retry_in", next).Msg("request failed, retrying")
		}),
	)
	return err
}

func (c *apiClient) once(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || !isDialError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
	}

	log.Debug().Str("method", req.method).Str("path", req.path).Int("status", resp.StatusCode).Msg("api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.temporary() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// isDialError reports whether the request never reached the server. Other
// transport failures are not retried because the server may have acted.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
