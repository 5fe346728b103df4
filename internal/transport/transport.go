// Package transport is the delivery collaborator used by the sync
// coordinator: one Send call per queued operation, against whatever remote
// API the operation kind requires.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"veracity/internal/queue"
)

// ErrPayload marks a payload the remote side will never accept. The
// coordinator dead-letters such items immediately instead of burning the
// retry ceiling on them.
var ErrPayload = errors.New("transport: payload rejected")

// Transport attempts delivery of one queued operation. Implementations must
// honor ctx cancellation and deadlines.
type Transport interface {
	Send(ctx context.Context, kind queue.Kind, payload []byte) error
}

// endpointPaths maps operation kinds to their remote API paths.
var endpointPaths = map[queue.Kind]string{
	queue.KindAnalysis:       "/v1/analyses",
	queue.KindQuizSubmission: "/v1/quiz-submissions",
	queue.KindReport:         "/v1/reports",
}

// HTTP delivers operations as JSON POSTs to a per-kind endpoint.
type HTTP struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

var _ Transport = (*HTTP)(nil)

// NewHTTP creates an HTTP transport. The client's own timeout is left unset:
// per-attempt deadlines come from the coordinator through ctx.
func NewHTTP(baseURL, apiKey string, log *zap.Logger) *HTTP {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		log:     log.Named("transport"),
	}
}

// Send posts the payload to the endpoint for its kind.
func (t *HTTP) Send(ctx context.Context, kind queue.Kind, payload []byte) error {
	path, ok := endpointPaths[kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrPayload, kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		t.log.Debug("delivered", zap.String("kind", string(kind)), zap.Int("status", resp.StatusCode))
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		// Transient despite the 4xx class.
		return fmt.Errorf("delivery throttled: status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrPayload, resp.StatusCode)
	default:
		return fmt.Errorf("delivery failed: status %d", resp.StatusCode)
	}
}
