package dav

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// Reply is the completion descriptor returned by every request: the
// resolved URI, the raw status code, the response body (kept for
// diagnostics even on failure), and the classified error, if any.
type Reply struct {
	URI        string
	StatusCode int
	Body       []byte
	Headers    http.Header
	Err        error
}

// HasError reports whether this reply represents a failed request, i.e.
// whether the classified error is non-nil. Body parse errors are not
// recorded on the Reply; the Parse* functions return them directly.
func (r *Reply) HasError() bool {
	return r.Err != nil
}

// Requester is the shared HTTP request shell (C2): authentication header
// injection, TLS error handling, status classification, and error
// packaging, common to every method request in this package.
type Requester struct {
	settings *model.Settings
	client   *http.Client
	log      zerolog.Logger
}

// NewRequester builds a Requester for the given session settings. The
// returned *http.Client honors settings.IgnoreTLSErrors.
func NewRequester(settings *model.Settings, log zerolog.Logger) *Requester {
	transport := &http.Transport{}
	if settings.IgnoreTLSErrors {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit account-level opt-in
	}
	return &Requester{
		settings: settings,
		client:   &http.Client{Transport: transport},
		log:      log,
	}
}

// retryableMethod reports whether method gets the one-shot AuthenticationRequired
// replay (Yahoo reliably fails the first request
// after fresh OAuth).
func retryableMethod(method string) bool {
	return method == "PROPFIND" || method == "REPORT"
}

// Do issues one HTTP request, classifies the outcome, and
// retries once for PROPFIND/REPORT when the first attempt's classified
// error is ErrAuthenticationFailed. The context governs cancellation: once
// ctx is done, Do returns ctx.Err() and emits no further attempts.
func (r *Requester) Do(ctx context.Context, method, path string, body []byte) (*Reply, error) {
	return r.DoHeaders(ctx, method, path, body, nil)
}

// DoHeaders is Do, plus extra request headers (Depth, If-Match,
// If-None-Match, Content-Type, Prefer) the caller wants set.
func (r *Requester) DoHeaders(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Reply, error) {
	reply, err := r.attempt(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	if reply.Err != nil && errorsIsAuth(reply.Err) && retryableMethod(method) {
		r.log.Debug().Str("method", method).Str("path", path).Msg("retrying after authentication-required")
		return r.attempt(ctx, method, path, body, headers)
	}
	return reply, nil
}

func (r *Requester) attempt(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Reply, error) {
	url := r.settings.ServerURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("dav: building %s %s: %w", method, path, err)
	}
	applyAuth(req, r.settings)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled in flight: emit nothing further.
			return nil, ctx.Err()
		}
		var certErr *tls.CertificateVerificationError
		var alertErr tls.AlertError
		var recErr tls.RecordHeaderError
		if errors.As(err, &certErr) || errors.As(err, &alertErr) || errors.As(err, &recErr) {
			// TLS handshake failure: reported as an authentication failure.
			return &Reply{URI: path, Err: fmt.Errorf("%w: %s %s: %v", ErrAuthenticationFailed, method, path, err)}, nil
		}
		return &Reply{URI: path, Err: fmt.Errorf("dav: %s %s: %w", method, path, err)}, nil
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &Reply{URI: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("dav: reading %s %s response: %w", method, path, readErr)}, nil
	}

	reply := &Reply{URI: path, StatusCode: resp.StatusCode, Body: respBody, Headers: resp.Header}
	reply.Err = classifyStatus(method, resp.StatusCode)

	r.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Err(reply.Err).
		Msg("dav request completed")

	if reply.Err != nil {
		return reply, nil
	}
	return reply, nil
}

// classifyStatus implements the status-classification policy.
func classifyStatus(method string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil

	case status == http.StatusNotFound:
		if method == http.MethodDelete {
			return nil // idempotent removal
		}
		if method == "REPORT" || method == "PROPFIND" {
			return ErrCollectionGone
		}
		return &StatusError{Method: method, Status: status}

	case status == http.StatusForbidden:
		if method == http.MethodPut || method == http.MethodDelete {
			return ErrSoftFailure
		}
		return ErrAuthenticationFailed

	case status == http.StatusUnauthorized:
		return ErrAuthenticationFailed

	default:
		return &StatusError{Method: method, Status: status}
	}
}

func errorsIsAuth(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}
