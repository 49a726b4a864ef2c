package tunbridge

/*------------------------------------------------------------------
 *
 * Purpose:	Bridge threads between the TUN device and the acoustic
 *		MAC: one reads datagrams off TUN and derives a
 *		destination MAC for the acoustic link, the other drains
 *		decoded packets back out to TUN, recomputing the IPv4
 *		checksum since routing may have mutated the header.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"encoding/binary"

	"github.com/charmbracelet/log"

	"github.com/kc2tty/acoustilink/internal/ipnet"
)

// Outbound is one packet queued for the acoustic MAC, paired with the
// destination MAC address the routing rules below derived for it.
type Outbound struct {
	Packet  []byte
	DestMAC byte
}

// Bridge ties a TUN Device to the acoustic link's send/receive channels.
type Bridge struct {
	Device  *Device
	LocalIP [4]byte
	Netmask [4]byte
	Gateway *[4]byte // nil if this node has no default gateway
	Log     *log.Logger
}

// NewBridge builds a Bridge; Gateway may be nil.
func NewBridge(dev *Device, localIP, netmask [4]byte, gateway *[4]byte) *Bridge {
	return &Bridge{
		Device:  dev,
		LocalIP: localIP,
		Netmask: netmask,
		Gateway: gateway,
		Log:     log.Default().WithPrefix("tunbridge"),
	}
}

// RunReader reads packets off TUN and sends them on toAcoustic, deriving
// each packet's destination MAC from the routing rules: direct neighbor
// -> destination's own last octet; non-local with a gateway configured
// -> gateway's last octet; otherwise the destination's last octet as a
// fallback. Multicast and limited-broadcast destinations are dropped.
func (b *Bridge) RunReader(ctx context.Context, toAcoustic chan<- Outbound) error {
	buf := make([]byte, MTU+ipnet.HeaderLen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := b.Device.Read(buf)
		if err != nil {
			return err
		}
		if n < ipnet.HeaderLen {
			continue
		}
		packet := append([]byte(nil), buf[:n]...)

		var dest [4]byte
		copy(dest[:], packet[16:20])
		if isMulticastOrBroadcast(dest) {
			b.Log.Debug("ignoring multicast/broadcast packet", "dest", dest)
			continue
		}

		destMAC := b.destinationMAC(dest)
		select {
		case toAcoustic <- Outbound{Packet: packet, DestMAC: destMAC}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunWriter drains fromAcoustic and writes each packet to TUN after
// recomputing its IPv4 header checksum.
func (b *Bridge) RunWriter(ctx context.Context, fromAcoustic <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-fromAcoustic:
			if !ok {
				return nil
			}
			if len(packet) < ipnet.HeaderLen {
				b.Log.Warn("dropping packet too short for IPv4 header", "len", len(packet))
				continue
			}
			recomputeChecksum(packet)
			if err := b.Device.Write(packet); err != nil {
				b.Log.Error("TUN write failed", "err", err)
			}
		}
	}
}

func (b *Bridge) destinationMAC(dest [4]byte) byte {
	isLocal := true
	for i := 0; i < 4; i++ {
		if dest[i]&b.Netmask[i] != b.LocalIP[i]&b.Netmask[i] {
			isLocal = false
			break
		}
	}
	if isLocal {
		return dest[3]
	}
	if b.Gateway != nil {
		return b.Gateway[3]
	}
	return dest[3]
}

func isMulticastOrBroadcast(ip [4]byte) bool {
	if ip == [4]byte{255, 255, 255, 255} {
		return true
	}
	return ip[0] >= 224 && ip[0] <= 239
}

func recomputeChecksum(packet []byte) {
	packet[10], packet[11] = 0, 0
	checksum := ipnet.Checksum(packet[:ipnet.HeaderLen])
	binary.BigEndian.PutUint16(packet[10:12], checksum)
}
