package webhooks

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureLogRing(t *testing.T) {
	t.Parallel()

	l := newFailureLog(3)
	assert.Empty(t, l.list("", 0))

	for i := 0; i < 5; i++ {
		l.add(FailureRecord{JobID: fmt.Sprint(i), SessionID: []string{"a", "b"}[i%2]})
	}

	ids := func(rs []FailureRecord) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.JobID)
		}
		return out
	}
	assert.Equal(t, []string{"4", "3", "2"}, ids(l.list("", 0)))
	assert.Equal(t, []string{"4"}, ids(l.list("", 1)))
	assert.Equal(t, []string{"4", "2"}, ids(l.list("a", 0)))
	assert.Equal(t, []string{"3"}, ids(l.list("b", 0)))
}

func TestFailureReason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ReasonRejected, failureReason(&DeliveryError{Kind: FailureClientError, StatusCode: 410}))
	assert.Equal(t, ReasonExhausted, failureReason(&DeliveryError{Kind: FailureServerError, StatusCode: 503}))
	assert.Equal(t, ReasonExhausted, failureReason(&DeliveryError{Kind: FailureTimeout}))
}
