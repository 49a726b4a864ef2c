package router

/*------------------------------------------------------------------
 *
 * Purpose:	Two-interface router tying together routing, ARP, and NAT:
 *		forwards IPv4 packets between the acoustic and Ethernet
 *		interfaces, one RX goroutine per side feeding one TX
 *		channel per side.
 *
 *------------------------------------------------------------------*/

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/kc2tty/acoustilink/internal/ipnet"
)

// Config is the router's identity on its two interfaces.
type Config struct {
	EthernetIP  [4]byte
	EthernetMAC [6]byte

	// GatewayIP, when non-nil, is the default gateway on the Ethernet
	// side; destinations with no direct route go there via outbound NAT.
	GatewayIP *[4]byte
}

// AcousticOutbound is one routed packet bound for the acoustic TX drain,
// with its one-byte acoustic destination MAC already derived.
type AcousticOutbound struct {
	Packet  []byte
	DestMAC byte
}

// EthernetOutbound is one routed packet bound for the Ethernet TX drain,
// ready to be wrapped in an Ethernet header addressed to DestMAC.
type EthernetOutbound struct {
	Packet  []byte
	DestMAC [6]byte
}

// Router owns the routing/ARP/NAT tables and the channels connecting
// the acoustic and Ethernet sides.
type Router struct {
	Config Config
	Routes *RoutingTable
	Arp    *ArpTable
	Nat    *NatTable
	Log    *log.Logger
}

// NewRouter builds a Router with empty tables; callers populate Routes
// and Arp (e.g. from internal/config or internal/router/ethernet.go)
// before calling Run.
func NewRouter(cfg Config) *Router {
	return &Router{
		Config: cfg,
		Routes: NewRoutingTable(),
		Arp:    NewArpTable(),
		Nat:    NewNatTable(),
		Log:    log.Default().WithPrefix("router"),
	}
}

// Run drives the two forwarding goroutines until ctx is canceled or one
// of them returns an error:
//
//   - acoustic RX: packets decoded off the acoustic link, routed by
//     destination (usually out the Ethernet side).
//   - ethernet RX: packets captured off the Ethernet side, routed by
//     destination (usually back over the acoustic link).
//   - acoustic TX / ethernet TX: callers drain the returned channels
//     into the acoustic MAC and the Ethernet socket respectively; Run
//     only produces output on them, it never reads them.
func (r *Router) Run(ctx context.Context, acousticIn <-chan []byte, ethernetIn <-chan []byte) (acousticOut <-chan AcousticOutbound, ethernetOut <-chan EthernetOutbound, wait func() error) {
	toAcoustic := make(chan AcousticOutbound, 64)
	toEthernet := make(chan EthernetOutbound, 64)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.rxLoop(gctx, acousticIn, Acoustic, toAcoustic, toEthernet) })
	g.Go(func() error { return r.rxLoop(gctx, ethernetIn, Ethernet, toAcoustic, toEthernet) })

	wait = func() error {
		err := g.Wait()
		close(toAcoustic)
		close(toEthernet)
		return err
	}
	return toAcoustic, toEthernet, wait
}

func (r *Router) rxLoop(ctx context.Context, in <-chan []byte, from Interface, toAcoustic chan<- AcousticOutbound, toEthernet chan<- EthernetOutbound) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-in:
			if !ok {
				return nil
			}
			r.forwardOne(packet, from, toAcoustic, toEthernet)
		}
	}
}

// forwardOne routes a single packet received on fromIface. A packet from
// the Ethernet side addressed to the router itself is first checked
// against the NAT table: a translated echo reply is rerouted to its
// original acoustic-side requester, anything else for the router is
// dropped (there is no host stack behind this address).
func (r *Router) forwardOne(packet []byte, fromIface Interface, toAcoustic chan<- AcousticOutbound, toEthernet chan<- EthernetOutbound) {
	if len(packet) < ipnet.HeaderLen {
		r.Log.Warn("dropping packet too short for IPv4 header", "len", len(packet))
		return
	}
	var dest [4]byte
	copy(dest[:], packet[16:20])

	if fromIface == Ethernet && dest == r.Config.EthernetIP {
		if !r.natInboundReply(packet) {
			r.Log.Debug("dropping packet addressed to the router itself", "proto", packet[9])
			return
		}
		copy(dest[:], packet[16:20])
	}

	decision, err := r.Decide(packet, dest)
	switch err {
	case nil:
		// fall through to NAT + forward below
	case ErrTTLExpired:
		r.Log.Debug("dropping packet, TTL expired")
		return
	case ErrNoRoute, ErrNoArpEntry:
		r.Log.Warn("dropping packet", "err", err, "dest", dest)
		return
	default:
		r.Log.Warn("dropping malformed packet", "err", err)
		return
	}

	if decision.ViaGateway {
		if !r.natOutbound(decision.Packet) {
			r.Log.Debug("dropping non-echo packet with no direct route", "dest", dest)
			return
		}
	}

	switch decision.Interface {
	case Acoustic:
		var finalDest [4]byte
		copy(finalDest[:], decision.Packet[16:20])
		toAcoustic <- AcousticOutbound{Packet: decision.Packet, DestMAC: finalDest[3]}
	case Ethernet:
		toEthernet <- EthernetOutbound{Packet: decision.Packet, DestMAC: decision.NextHopMAC}
	}
}

const icmpProtocol = 1

// natOutbound registers an ICMP echo request's identifier against its
// original source IP and rewrites the source to the router's own
// Ethernet-side address, so replies route back through this router. It
// reports whether the packet was eligible (echo requests only).
func (r *Router) natOutbound(packet []byte) bool {
	if packet[9] != icmpProtocol {
		return false
	}
	ihl := int(packet[0]&0x0F) * 4
	if ihl > len(packet) {
		return false
	}
	icmpPkt, err := ipnet.ICMPPacketFromBytes(packet[ihl:])
	if err != nil || icmpPkt.Type != ipnet.ICMPEchoRequest {
		return false
	}

	var srcIP [4]byte
	copy(srcIP[:], packet[12:16])
	r.Nat.RegisterEchoRequest(icmpPkt.ID, srcIP)

	copy(packet[12:16], r.Config.EthernetIP[:])
	rewriteHeaderChecksum(packet, ihl)
	return true
}

// natInboundReply rewrites an ICMP echo reply's destination back to the
// original acoustic-side requester, looked up by ICMP identifier. It
// reports whether a translation was found and applied.
func (r *Router) natInboundReply(packet []byte) bool {
	if packet[9] != icmpProtocol {
		return false
	}
	ihl := int(packet[0]&0x0F) * 4
	if ihl > len(packet) {
		return false
	}
	icmpPkt, err := ipnet.ICMPPacketFromBytes(packet[ihl:])
	if err != nil || icmpPkt.Type != ipnet.ICMPEchoReply {
		return false
	}
	origSrc, ok := r.Nat.TranslateEchoReply(icmpPkt.ID)
	if !ok {
		return false
	}
	copy(packet[16:20], origSrc[:])
	rewriteHeaderChecksum(packet, ihl)
	return true
}

func rewriteHeaderChecksum(packet []byte, ihl int) {
	packet[10], packet[11] = 0, 0
	checksum := ipnet.Checksum(packet[:ihl])
	packet[10] = byte(checksum >> 8)
	packet[11] = byte(checksum)
}
