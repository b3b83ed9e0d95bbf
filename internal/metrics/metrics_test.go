package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesWebhookMetrics(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	WebhookAttempts.WithLabelValues("message.received", "success").Inc()
	WebhookQueueDepth.Set(3)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), `webhook_attempts_total{event_type="message.received",outcome="success"}`)
	assert.Contains(t, string(body), "webhook_queue_depth 3")
	assert.Contains(t, string(body), "go_goroutines")
}
