package router

/*------------------------------------------------------------------
 *
 * Purpose:	Raw Ethernet capture and injection for the router's
 *		Ethernet side: an AF_PACKET socket bound to one link,
 *		reading IPv4 frames with their Ethernet header stripped
 *		and writing IPv4 packets wrapped in a fresh header.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const (
	etherHeaderLen = 14
	etherTypeIPv4  = 0x0800
)

// EthernetSocket is a raw AF_PACKET socket bound to a single link,
// restricted to IPv4 frames.
type EthernetSocket struct {
	fd       int
	ifindex  int
	localMAC [6]byte
}

// OpenEthernetSocket binds a raw IPv4-only packet socket to linkName.
// Requires CAP_NET_RAW.
func OpenEthernetSocket(linkName string) (*EthernetSocket, error) {
	link, err := netlink.LinkByName(linkName)
	if err != nil {
		return nil, fmt.Errorf("router: lookup link %s: %w", linkName, err)
	}
	hw := link.Attrs().HardwareAddr
	if len(hw) != 6 {
		return nil, fmt.Errorf("router: link %s has no Ethernet address", linkName)
	}

	proto := htons(unix.ETH_P_IP)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("router: open packet socket: %w", err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  link.Attrs().Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("router: bind packet socket to %s: %w", linkName, err)
	}

	s := &EthernetSocket{fd: fd, ifindex: link.Attrs().Index}
	copy(s.localMAC[:], hw)
	return s, nil
}

// LocalMAC is the bound link's hardware address, used as the source of
// every injected frame.
func (s *EthernetSocket) LocalMAC() [6]byte {
	return s.localMAC
}

// ReadIPv4 blocks until an IPv4 frame arrives on the link and returns
// its payload with the Ethernet header stripped. Frames this host sent
// itself and non-IPv4 frames are skipped.
func (s *EthernetSocket) ReadIPv4(buf []byte) ([]byte, error) {
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, fmt.Errorf("router: packet socket read: %w", err)
		}
		if n < etherHeaderLen {
			continue
		}
		if binary.BigEndian.Uint16(buf[12:14]) != etherTypeIPv4 {
			continue
		}
		var srcMAC [6]byte
		copy(srcMAC[:], buf[6:12])
		if srcMAC == s.localMAC {
			continue
		}
		payload := make([]byte, n-etherHeaderLen)
		copy(payload, buf[etherHeaderLen:n])
		return payload, nil
	}
}

// WriteIPv4 wraps packet in an Ethernet header (destMAC, this link's
// MAC, EtherType 0x0800) and injects it onto the wire.
func (s *EthernetSocket) WriteIPv4(packet []byte, destMAC [6]byte) error {
	frame := make([]byte, etherHeaderLen+len(packet))
	copy(frame[0:6], destMAC[:])
	copy(frame[6:12], s.localMAC[:])
	binary.BigEndian.PutUint16(frame[12:14], etherTypeIPv4)
	copy(frame[etherHeaderLen:], packet)

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  s.ifindex,
		Halen:    6,
	}
	copy(addr.Addr[:6], destMAC[:])
	if err := unix.Sendto(s.fd, frame, 0, addr); err != nil {
		return fmt.Errorf("router: packet socket write: %w", err)
	}
	return nil
}

// Close releases the socket.
func (s *EthernetSocket) Close() error {
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
