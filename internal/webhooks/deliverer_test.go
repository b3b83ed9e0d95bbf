package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivererSuccessAndHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotSig, gotType, gotID, gotAttempt, gotCT string
		gotBody                                   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotType = r.Header.Get(HeaderEventType)
		gotID = r.Header.Get(HeaderWebhookID)
		gotAttempt = r.Header.Get(HeaderAttempt)
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	body := []byte(`{"event":"message.received","sessionId":"s1","data":{},"timestamp":"x"}`)
	out := NewDeliverer(srv.Client()).Deliver(context.Background(), Request{
		URL: srv.URL, Body: body, Secret: "secret", EventType: "message.received", JobID: "job-1", Attempt: 2,
	})

	require.True(t, out.Success())
	assert.NoError(t, out.Err)
	assert.Equal(t, http.StatusNoContent, out.StatusCode)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "message.received", gotType)
	assert.Equal(t, "job-1", gotID)
	assert.Equal(t, "2", gotAttempt)
	assert.Equal(t, body, gotBody)
	assert.True(t, VerifyHMAC("secret", gotBody, gotSig))
}

func TestDelivererNoSecretNoSignature(t *testing.T) {
	t.Parallel()

	var hasSig bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSig = r.Header[HeaderSignature]
	}))
	defer srv.Close()

	out := NewDeliverer(srv.Client()).Deliver(context.Background(), Request{URL: srv.URL, Body: []byte(`{}`)})
	require.True(t, out.Success())
	assert.False(t, hasSig)
}

func TestDelivererClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   FailureKind
	}{
		{"ok", http.StatusOK, FailureNone},
		{"accepted", http.StatusAccepted, FailureNone},
		{"not found", http.StatusNotFound, FailureClientError},
		{"too many requests", http.StatusTooManyRequests, FailureClientError},
		{"found", http.StatusFound, FailureClientError},
		{"not modified", http.StatusNotModified, FailureClientError},
		{"server error", http.StatusInternalServerError, FailureServerError},
		{"bad gateway", http.StatusBadGateway, FailureServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			out := NewDeliverer(srv.Client()).Deliver(context.Background(), Request{URL: srv.URL, Body: []byte(`{}`)})
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.status, out.StatusCode)
			if tt.want == FailureNone {
				assert.NoError(t, out.Err)
				return
			}
			require.Error(t, out.Err)
			if tt.status != http.StatusNotModified {
				assert.Contains(t, out.Err.Error(), "nope")
			}
			assert.Equal(t, tt.want == FailureClientError, errors.Is(out.Err, ErrClient))
			assert.Equal(t, tt.want.Retryable(), errors.Is(out.Err, ErrTransient))
		})
	}
}

func TestDelivererDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	var landed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		landed.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, client := range []*http.Client{nil, srv.Client()} {
		out := NewDeliverer(client).Deliver(context.Background(), Request{URL: srv.URL + "/hook", Body: []byte(`{}`)})
		assert.Equal(t, FailureClientError, out.Kind)
		assert.Equal(t, http.StatusFound, out.StatusCode)
		assert.ErrorIs(t, out.Err, ErrClient)
	}
	assert.Zero(t, landed.Load())
	assert.Nil(t, srv.Client().CheckRedirect, "caller's client must not be modified")
}

func TestDelivererTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	out := NewDeliverer(srv.Client()).Deliver(context.Background(), Request{
		URL: srv.URL, Body: []byte(`{}`), Timeout: 50 * time.Millisecond,
	})
	assert.Equal(t, FailureTimeout, out.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, out.Err, ErrTransient)
}

func TestDelivererNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := NewDeliverer(nil).Deliver(context.Background(), Request{URL: url, Body: []byte(`{}`), Timeout: time.Second})
	assert.Equal(t, FailureNetworkError, out.Kind)
	assert.Zero(t, out.StatusCode)
	assert.Error(t, out.Err)
}

func TestDelivererInvalidURL(t *testing.T) {
	t.Parallel()

	out := NewDeliverer(nil).Deliver(context.Background(), Request{URL: "://bad", Body: []byte(`{}`)})
	assert.Equal(t, FailureClientError, out.Kind)
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", excerpt([]byte("  short\n")))
	long := excerpt([]byte(strings.Repeat("x", 1000)))
	assert.Len(t, long, errorExcerpt+3)
}
