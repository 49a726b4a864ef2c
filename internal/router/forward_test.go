package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc2tty/acoustilink/internal/ipnet"
)

func buildIPv4Packet(t *testing.T, ttl byte, src, dst [4]byte) []byte {
	t.Helper()
	h := ipnet.NewHeader(uint16(ipnet.HeaderLen), 1, ttl, 17, src, dst)
	return h.ToBytes()
}

func TestDecrementTTLRecomputesChecksum(t *testing.T) {
	packet := buildIPv4Packet(t, 64, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	require.NoError(t, DecrementTTL(packet))
	assert.Equal(t, byte(63), packet[8])
	assert.True(t, ipnet.VerifyChecksum(packet))
}

func TestDecrementTTLExpiresAtOne(t *testing.T) {
	packet := buildIPv4Packet(t, 1, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	err := DecrementTTL(packet)
	assert.ErrorIs(t, err, ErrTTLExpired)
	assert.Equal(t, byte(1), packet[8], "packet left untouched on TTL expiry")
}

func newTestRouter() *Router {
	r := NewRouter(Config{
		EthernetIP:  [4]byte{192, 168, 2, 1},
		EthernetMAC: [6]byte{0x02, 0, 0, 0, 0, 1},
	})
	r.Routes.AddDirectNetwork([4]byte{192, 168, 1, 0}, [4]byte{255, 255, 255, 0}, Acoustic)
	r.Routes.AddDirectNetwork([4]byte{192, 168, 2, 0}, [4]byte{255, 255, 255, 0}, Ethernet)
	return r
}

func TestDecideReturnsNoRouteForUnknownDestination(t *testing.T) {
	r := newTestRouter()
	packet := buildIPv4Packet(t, 64, [4]byte{192, 168, 1, 5}, [4]byte{10, 0, 0, 1})
	_, err := r.Decide(packet, [4]byte{10, 0, 0, 1})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestDecideReturnsNoArpEntryForEthernetWithoutResolution(t *testing.T) {
	r := newTestRouter()
	packet := buildIPv4Packet(t, 64, [4]byte{192, 168, 1, 5}, [4]byte{192, 168, 2, 100})
	_, err := r.Decide(packet, [4]byte{192, 168, 2, 100})
	assert.ErrorIs(t, err, ErrNoArpEntry)
}

func TestDecideDecrementsTTLAndResolvesArp(t *testing.T) {
	r := newTestRouter()
	nextHopMAC := [6]byte{0x02, 0, 0, 0, 0, 99}
	r.Arp.Set([4]byte{192, 168, 2, 100}, nextHopMAC, Ethernet)

	packet := buildIPv4Packet(t, 64, [4]byte{192, 168, 1, 5}, [4]byte{192, 168, 2, 100})
	decision, err := r.Decide(packet, [4]byte{192, 168, 2, 100})
	require.NoError(t, err)
	assert.Equal(t, Ethernet, decision.Interface)
	assert.Equal(t, nextHopMAC, decision.NextHopMAC)
	assert.Equal(t, byte(63), decision.Packet[8])
	assert.True(t, ipnet.VerifyChecksum(decision.Packet))
}
