package hrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransport(t *testing.T) {
	cause := errors.New("broken pipe")
	transport := &TransportError{Op: "mutateRows", Err: cause}

	assert.True(t, IsTransport(transport))
	assert.True(t, IsTransport(fmt.Errorf("flushing batch: %w", transport)))
	assert.False(t, IsTransport(cause))
	assert.False(t, IsTransport(errors.New("table does not exist")))
	assert.False(t, IsTransport(nil))

	assert.ErrorIs(t, transport, cause)
	assert.Contains(t, transport.Error(), "mutateRows")
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "00a1ff", Key([]byte{0x00, 0xa1, 0xff}).String())
	assert.Equal(t, "", Key(nil).String())
}
