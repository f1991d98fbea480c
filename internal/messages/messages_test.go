package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKnownKey(t *testing.T) {
	text := New().Format("errorHashMismatch", "AA", "BB")
	assert.Equal(t, "hash mismatch: expected AA, received BB", text)
}

func TestFormatUnknownKey(t *testing.T) {
	text := New().Format("errorNoSuchKey", 1, 2)
	assert.Contains(t, text, "errorNoSuchKey")
}
