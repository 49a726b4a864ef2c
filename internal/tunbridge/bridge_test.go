package tunbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc2tty/acoustilink/internal/ipnet"
)

func TestDestinationMACPrefersLocalLastOctet(t *testing.T) {
	b := NewBridge(nil, [4]byte{192, 168, 1, 1}, [4]byte{255, 255, 255, 0}, nil)
	assert.Equal(t, byte(42), b.destinationMAC([4]byte{192, 168, 1, 42}))
}

func TestDestinationMACUsesGatewayForNonLocal(t *testing.T) {
	gw := [4]byte{192, 168, 1, 254}
	b := NewBridge(nil, [4]byte{192, 168, 1, 1}, [4]byte{255, 255, 255, 0}, &gw)
	assert.Equal(t, byte(254), b.destinationMAC([4]byte{8, 8, 8, 8}))
}

func TestDestinationMACFallsBackWithoutGateway(t *testing.T) {
	b := NewBridge(nil, [4]byte{192, 168, 1, 1}, [4]byte{255, 255, 255, 0}, nil)
	assert.Equal(t, byte(8), b.destinationMAC([4]byte{8, 8, 8, 8}))
}

func TestIsMulticastOrBroadcast(t *testing.T) {
	assert.True(t, isMulticastOrBroadcast([4]byte{255, 255, 255, 255}))
	assert.True(t, isMulticastOrBroadcast([4]byte{224, 0, 0, 1}))
	assert.False(t, isMulticastOrBroadcast([4]byte{192, 168, 1, 1}))
}

func TestRecomputeChecksumValidatesAfterMutation(t *testing.T) {
	h := ipnet.NewHeader(ipnet.HeaderLen, 1, 64, 17, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	packet := h.ToBytes()
	packet[8]-- // simulate a TTL decrement upstream without a checksum fixup
	recomputeChecksum(packet)
	require.True(t, ipnet.VerifyChecksum(packet))
}
