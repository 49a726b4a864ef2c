package ipnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripAndChecksumValidates(t *testing.T) {
	h := NewHeader(20, 12345, 64, 17, [4]byte{192, 168, 1, 1}, [4]byte{192, 168, 1, 2})
	b := h.ToBytes()
	require.Len(t, b, HeaderLen)

	got, err := HeaderFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, VerifyChecksum(b))
}

func TestChecksumDetectsCorruption(t *testing.T) {
	h := NewHeader(20, 1, 64, 6, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	b := h.ToBytes()
	b[8] ^= 0xFF // corrupt TTL
	assert.False(t, VerifyChecksum(b))
}

// TestTTLDecrementAndChecksumScenario:
// TTL=64 decremented to 63 with a recomputed checksum that validates.
func TestTTLDecrementAndChecksumScenario(t *testing.T) {
	h := NewHeader(20, 1, 64, 6, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	h.TTL--
	h.Checksum = h.calculateChecksum()
	assert.True(t, VerifyChecksum(h.ToBytes()))
	assert.Equal(t, byte(63), h.TTL)
}
