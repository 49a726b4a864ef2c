package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRoutingLookupConcreteScenario mirrors the worked example: direct
// networks 192.168.1.0/24 -> Acoustic and 192.168.2.0/24 -> Ethernet.
func TestRoutingLookupConcreteScenario(t *testing.T) {
	rt := NewRoutingTable()
	rt.AddDirectNetwork([4]byte{192, 168, 1, 0}, [4]byte{255, 255, 255, 0}, Acoustic)
	rt.AddDirectNetwork([4]byte{192, 168, 2, 0}, [4]byte{255, 255, 255, 0}, Ethernet)

	iface, ok := rt.Lookup([4]byte{192, 168, 1, 5})
	assert.True(t, ok)
	assert.Equal(t, Acoustic, iface)

	iface, ok = rt.Lookup([4]byte{192, 168, 2, 100})
	assert.True(t, ok)
	assert.Equal(t, Ethernet, iface)

	_, ok = rt.Lookup([4]byte{10, 0, 0, 1})
	assert.False(t, ok)
}

func TestArpTableScopedPerInterface(t *testing.T) {
	at := NewArpTable()
	mac1 := [6]byte{0x02, 0, 0, 0, 0, 1}
	mac2 := [6]byte{0x02, 0, 0, 0, 0, 2}
	ip := [4]byte{192, 168, 1, 5}

	at.Set(ip, mac1, Acoustic)
	at.Set(ip, mac2, Ethernet)

	got, ok := at.Get(ip, Acoustic)
	assert.True(t, ok)
	assert.Equal(t, mac1, got)

	got, ok = at.Get(ip, Ethernet)
	assert.True(t, ok)
	assert.Equal(t, mac2, got)

	_, ok = at.Get([4]byte{10, 0, 0, 1}, Acoustic)
	assert.False(t, ok)
}

func TestNatTableRoundTrip(t *testing.T) {
	nt := NewNatTable()
	src := [4]byte{192, 168, 1, 5}
	nt.RegisterEchoRequest(0x1234, src)

	got, ok := nt.TranslateEchoReply(0x1234)
	assert.True(t, ok)
	assert.Equal(t, src, got)

	_, ok = nt.TranslateEchoReply(0x9999)
	assert.False(t, ok)
}
