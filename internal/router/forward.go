package router

/*------------------------------------------------------------------
 *
 * Purpose:	Per-packet forwarding decision: TTL decrement, checksum
 *		recompute, route lookup, ARP resolution, ICMP NAT.
 *
 *------------------------------------------------------------------*/

import (
	"errors"

	"github.com/kc2tty/acoustilink/internal/ipnet"
)

// ErrTTLExpired is returned when a packet's TTL would drop to 0 or
// below; the router drops such packets silently (no ICMP
// Time-Exceeded is generated).
var ErrTTLExpired = errors.New("router: TTL expired")

// ErrNoRoute is returned when no routing table entry matches the
// destination.
var ErrNoRoute = errors.New("router: no route to destination")

// ErrNoArpEntry is returned when the destination interface has no
// known MAC address for the next hop.
var ErrNoArpEntry = errors.New("router: no ARP entry for next hop")

// DecrementTTL decrements packet's TTL in place and recomputes its
// header checksum. It returns ErrTTLExpired without modifying packet
// if TTL is already 1 or 0.
func DecrementTTL(packet []byte) error {
	if len(packet) < ipnet.HeaderLen {
		return errors.New("router: packet too short for IPv4 header")
	}
	if packet[8] <= 1 {
		return ErrTTLExpired
	}
	packet[8]--
	packet[10] = 0
	packet[11] = 0
	checksum := ipnet.Checksum(packet[:ipnet.HeaderLen])
	packet[10] = byte(checksum >> 8)
	packet[11] = byte(checksum)
	return nil
}

// RouteDecision is where a forwarded packet should go next.
type RouteDecision struct {
	Interface  Interface
	NextHopIP  [4]byte
	NextHopMAC [6]byte
	Packet     []byte

	// ViaGateway marks a destination with no direct route that is being
	// handed to the default gateway; such packets must take the outbound
	// NAT path (and only ICMP echo requests are eligible for it).
	ViaGateway bool
}

// Decide resolves the outbound interface, decrements TTL, and (for the
// Ethernet side) resolves the next-hop MAC address from the ARP table.
// dest is the packet's destination IP, pulled from its header by the
// caller (who already parsed it to run on the right acoustic/Ethernet
// RX goroutine). A destination with no direct route falls through to
// the default gateway when one is configured.
func (r *Router) Decide(packet []byte, dest [4]byte) (RouteDecision, error) {
	nextHop := dest
	viaGateway := false
	iface, ok := r.Routes.Lookup(dest)
	if !ok {
		if r.Config.GatewayIP == nil {
			return RouteDecision{}, ErrNoRoute
		}
		iface = Ethernet
		nextHop = *r.Config.GatewayIP
		viaGateway = true
	}

	out := append([]byte(nil), packet...)
	if err := DecrementTTL(out); err != nil {
		return RouteDecision{}, err
	}

	decision := RouteDecision{Interface: iface, NextHopIP: nextHop, Packet: out, ViaGateway: viaGateway}
	if iface == Ethernet {
		mac, ok := r.Arp.Get(nextHop, Ethernet)
		if !ok {
			return RouteDecision{}, ErrNoArpEntry
		}
		decision.NextHopMAC = mac
	}
	return decision, nil
}
