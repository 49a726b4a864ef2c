package phy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCRC8KnownVector(t *testing.T) {
	data := []byte("Hello, World!")
	crc := CRC8(data)
	assert.True(t, VerifyCRC8(data, crc))

	modified := append([]byte(nil), data...)
	modified[0] = 'h'
	assert.False(t, VerifyCRC8(modified, crc))
}

func TestBitByteConversion(t *testing.T) {
	b := byte(0b10110011)
	bits := ByteToBits(b)
	require.Equal(t, [8]int{1, 0, 1, 1, 0, 0, 1, 1}, bits)
	assert.Equal(t, b, BitsToByte(bits[:]))
}

func TestBytesBitsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		bits := BytesToBits(data)
		assert.Equal(t, len(data)*8, len(bits))
		recovered := BitsToBytes(bits)
		assert.Equal(t, data, recovered)
	})
}

func TestCRC8SingleBitFlipAlwaysDetected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "data")
		crc := CRC8(data)

		idx := rapid.IntRange(0, len(data)-1).Draw(t, "idx")
		bit := rapid.IntRange(0, 7).Draw(t, "bit")
		flipped := append([]byte(nil), data...)
		flipped[idx] ^= 1 << uint(bit)

		assert.False(t, VerifyCRC8(flipped, crc))
	})
}
