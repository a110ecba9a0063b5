package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
)

// CollectorPath is the tp2 endpoint path, re-exported for callers that
// build URLs themselves.
const CollectorPath = domain.CollectorPath

const contentType = "application/json; charset=UTF-8"

// Transport implements ports.Transport using HTTP.
type Transport struct {
	client   ports.HTTPClient
	logger   ports.Logger
	jar      http.CookieJar
	compress bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithCookieJar supplies the cookies attached to requests that ask for
// credentials. Set-Cookie answers on those requests are stored back.
func WithCookieJar(jar http.CookieJar) Option {
	return func(t *Transport) {
		t.jar = jar
	}
}

// WithGzip compresses request bodies and sets Content-Encoding: gzip.
func WithGzip(enabled bool) Option {
	return func(t *Transport) {
		t.compress = enabled
	}
}

// NewTransport creates a new HTTP transport.
func NewTransport(client ports.HTTPClient, logger ports.Logger, opts ...Option) *Transport {
	t := &Transport{
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the batch as a JSON array and classifies the answer. Status
// 200 to 399 is success, 400 and above is failure. A request cut short by
// ctx reports a timeout; any other error without a status is ambiguous.
func (t *Transport) Send(ctx context.Context, r ports.Request) ports.Result {
	req, err := t.newRequest(ctx, r)
	if err != nil {
		return ports.Result{Outcome: ports.OutcomeAmbiguous, Err: err}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return ports.Result{Outcome: ports.OutcomeTimeout, Err: fmt.Errorf("send request: %w", err)}
		}
		return ports.Result{Outcome: ports.OutcomeAmbiguous, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if r.SecureCredentials && t.jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			t.jar.SetCookies(req.URL, cookies)
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ports.Result{Outcome: ports.OutcomeSuccess, StatusCode: resp.StatusCode}
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return ports.Result{
			Outcome:    ports.OutcomeFailure,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("collector returned %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	// 1xx answers never reach here through net/http; treat anything else as
	// having no usable status.
	return ports.Result{
		Outcome:    ports.OutcomeAmbiguous,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("collector returned %d", resp.StatusCode),
	}
}

func (t *Transport) newRequest(ctx context.Context, r ports.Request) (*http.Request, error) {
	if _, err := url.Parse(r.URL); err != nil {
		return nil, fmt.Errorf("parse collector url: %w", err)
	}

	payload, err := encodeBatch(r.Events)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	var body bytes.Buffer
	if t.compress {
		zw := gzip.NewWriter(&body)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress batch: %w", err)
		}
	} else {
		body.Write(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if t.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if r.APIKey != "" {
		req.Header.Set("x-api-key", r.APIKey)
	}
	if r.SecureCredentials && t.jar != nil {
		for _, c := range t.jar.Cookies(req.URL) {
			req.AddCookie(c)
		}
	}
	return req, nil
}

// encodeBatch joins events into a JSON array without re-encoding them, so
// the body carries exactly the bytes each envelope was sized from.
func encodeBatch(events []json.RawMessage) ([]byte, error) {
	size := 2
	for _, e := range events {
		size += len(e) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, '[')
	for i, e := range events {
		if !json.Valid(e) {
			return nil, fmt.Errorf("event %d is not valid JSON", i)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, e...)
	}
	return append(buf, ']'), nil
}
