package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/adapter"
)

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = 500 * time.Millisecond
	defaultTimeout       = 10 * time.Second
)

// Transport sends a built connector request. Implementations must not
// interpret the status code; non-2xx responses are returned, not errored.
type Transport interface {
	Send(ctx context.Context, req *adapter.Request) (*adapter.Response, error)
}

type TransportErrorKind int

const (
	TransportTimeout TransportErrorKind = iota + 1
	TransportConnection
	TransportRead
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportConnection:
		return "connection"
	case TransportRead:
		return "read"
	default:
		return "unknown"
	}
}

// TransportError means the connector could not be reached or its response
// could not be read. It says nothing about the payment itself.
type TransportError struct {
	Kind TransportErrorKind
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s error calling %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches any *TransportError with the same kind.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.Kind == e.Kind
}

var (
	ErrTransportTimeout    = &TransportError{Kind: TransportTimeout}
	ErrTransportConnection = &TransportError{Kind: TransportConnection}
	ErrTransportRead       = &TransportError{Kind: TransportRead}
)

// HTTPTransport retries network errors, 429 and 5xx responses with a fixed
// delay. Connectors are expected to send an idempotency key on writes.
type HTTPTransport struct {
	client        *http.Client
	retryAttempts int
	retryDelay    time.Duration
	logger        *logrus.Logger
}

func NewHTTPTransport(client *http.Client, logger *logrus.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPTransport{
		client:        client,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		logger:        logger,
	}
}

// WithRetry overrides the retry policy. attempts counts retries after the first try.
func (t *HTTPTransport) WithRetry(attempts int, delay time.Duration) *HTTPTransport {
	t.retryAttempts = attempts
	t.retryDelay = delay
	return t
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (t *HTTPTransport) Send(ctx context.Context, req *adapter.Request) (*adapter.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, classify(req.URL, ctx.Err())
			case <-time.After(t.retryDelay):
			}
		}

		res, err := t.do(ctx, req)
		if err != nil {
			lastErr = err
			var te *TransportError
			if errors.As(err, &te) && te.Kind == TransportRead {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			t.logger.WithFields(logrus.Fields{
				"url":     req.URL,
				"attempt": attempt + 1,
				"error":   err,
			}).Warn("Connector call failed, retrying")
			continue
		}

		if retryable(res.StatusCode) && attempt < t.retryAttempts {
			t.logger.WithFields(logrus.Fields{
				"url":         req.URL,
				"attempt":     attempt + 1,
				"status_code": res.StatusCode,
			}).Warn("Connector returned retryable status")
			continue
		}
		return res, nil
	}
	return nil, lastErr
}

func (t *HTTPTransport) do(ctx context.Context, req *adapter.Request) (*adapter.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Kind: TransportConnection, URL: req.URL, Err: err}
	}
	httpReq.Header = req.Headers.Clone()

	httpRes, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classify(req.URL, err)
	}
	defer httpRes.Body.Close()

	b, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, &TransportError{Kind: TransportRead, URL: req.URL, Err: err}
	}
	return &adapter.Response{StatusCode: httpRes.StatusCode, Headers: httpRes.Header, Body: b}, nil
}

func classify(url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{Kind: TransportTimeout, URL: url, Err: err}
	}
	return &TransportError{Kind: TransportConnection, URL: url, Err: err}
}
