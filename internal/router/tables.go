package router

/*------------------------------------------------------------------
 *
 * Purpose:	Routing, ARP, and NAT tables for the two-interface
 *		acoustic<->Ethernet router.
 *
 *------------------------------------------------------------------*/

import "sync"

// Interface names the two sides of the router.
type Interface int

const (
	Acoustic Interface = iota
	Ethernet
)

func (i Interface) String() string {
	if i == Acoustic {
		return "Acoustic"
	}
	return "Ethernet"
}

// DirectNetwork is one directly connected network: packets whose
// destination falls in network/mask go out interface.
type DirectNetwork struct {
	Network   [4]byte
	Mask      [4]byte
	Interface Interface
}

// Contains reports whether ip belongs to this network.
func (d DirectNetwork) Contains(ip [4]byte) bool {
	for i := 0; i < 4; i++ {
		if d.Network[i]&d.Mask[i] != ip[i]&d.Mask[i] {
			return false
		}
	}
	return true
}

// RoutingTable is an ordered list of directly connected networks; the
// first matching entry wins (no longest-prefix matching is needed since
// there are only ever a handful of non-overlapping entries).
type RoutingTable struct {
	mu     sync.RWMutex
	routes []DirectNetwork
}

// NewRoutingTable builds an empty RoutingTable.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// AddDirectNetwork registers a directly connected network.
func (t *RoutingTable) AddDirectNetwork(network, mask [4]byte, iface Interface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, DirectNetwork{Network: network, Mask: mask, Interface: iface})
}

// Lookup returns the outbound interface for dest, or ok=false if no
// route matches.
func (t *RoutingTable) Lookup(dest [4]byte) (iface Interface, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.routes {
		if r.Contains(dest) {
			return r.Interface, true
		}
	}
	return 0, false
}

// ArpTable maps IP addresses to MAC addresses, scoped per interface,
// since the same IP on the acoustic side and Ethernet side (unlikely,
// but not forbidden) must not collide.
type ArpTable struct {
	mu      sync.RWMutex
	entries map[Interface]map[[4]byte][6]byte
}

// NewArpTable builds an empty ArpTable.
func NewArpTable() *ArpTable {
	return &ArpTable{entries: make(map[Interface]map[[4]byte][6]byte)}
}

// Set adds or overwrites an entry — used both for static configuration
// and for entries learned from the Ethernet side's kernel neighbor
// table.
func (t *ArpTable) Set(ip [4]byte, mac [6]byte, iface Interface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[iface] == nil {
		t.entries[iface] = make(map[[4]byte][6]byte)
	}
	t.entries[iface][ip] = mac
}

// Get looks up the MAC address for ip on iface.
func (t *ArpTable) Get(ip [4]byte, iface Interface) (mac [6]byte, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mac, ok = t.entries[iface][ip]
	return mac, ok
}

// NatTable maps an outgoing ICMP echo identifier back to the original
// acoustic-side source, so an Ethernet-side echo reply can be routed
// back to whichever acoustic host actually sent the request.
type NatTable struct {
	mu      sync.Mutex
	byIdent map[uint16][4]byte
}

// NewNatTable builds an empty NatTable.
func NewNatTable() *NatTable {
	return &NatTable{byIdent: make(map[uint16][4]byte)}
}

// RegisterEchoRequest records that identifier belongs to sourceIP.
func (t *NatTable) RegisterEchoRequest(identifier uint16, sourceIP [4]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byIdent[identifier] = sourceIP
}

// TranslateEchoReply looks up the original source IP for identifier.
func (t *NatTable) TranslateEchoReply(identifier uint16) (sourceIP [4]byte, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sourceIP, ok = t.byIdent[identifier]
	return sourceIP, ok
}
