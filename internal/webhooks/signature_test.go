package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignHMAC(t *testing.T) {
	t.Parallel()

	sig := SignHMAC("secret", []byte("payload"))
	assert.Equal(t, "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4", sig)
	assert.True(t, VerifyHMAC("secret", []byte("payload"), sig))
	assert.False(t, VerifyHMAC("other", []byte("payload"), sig))
	assert.False(t, VerifyHMAC("secret", []byte("payload!"), sig))
	assert.False(t, VerifyHMAC("secret", []byte("payload"), "not-hex"))
}
