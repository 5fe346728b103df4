package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veracity/internal/queue"
)

func TestSendSuccess(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, "test-key", nil)
	err := tr.Send(context.Background(), queue.KindReport, []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, "/v1/reports", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, `{"id":1}`, gotBody)
}

func TestSendServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, "", nil)
	err := tr.Send(context.Background(), queue.KindAnalysis, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPayload, "5xx must stay retryable")
}

func TestSendBadRequestIsPayloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, "", nil)
	err := tr.Send(context.Background(), queue.KindReport, []byte("broken"))
	assert.ErrorIs(t, err, ErrPayload)
}

func TestSendThrottlingIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, "", nil)
	err := tr.Send(context.Background(), queue.KindReport, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPayload, "429 must stay retryable")
}

func TestSendHonorsContextTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	tr := NewHTTP(srv.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tr.Send(ctx, queue.KindReport, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "a hung attempt must not block past its deadline")
}

func TestSendUnknownKind(t *testing.T) {
	tr := NewHTTP("http://localhost:0", "", nil)
	err := tr.Send(context.Background(), queue.Kind("mystery"), nil)
	assert.ErrorIs(t, err, ErrPayload)
}
