package router

/*------------------------------------------------------------------
 *
 * Purpose:	Ethernet-side interface setup: bring the link up, assign
 *		its address, and seed the ARP table from whatever the
 *		kernel has already learned on that link.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// ConfigureEthernetLink brings linkName up with addr/mask and mtu. It is
// a thin wrapper over netlink's link/address calls, grounded on the
// same "set it up, don't poll it" style the router uses elsewhere.
func ConfigureEthernetLink(linkName string, addr, mask [4]byte, mtu int) error {
	link, err := netlink.LinkByName(linkName)
	if err != nil {
		return fmt.Errorf("router: lookup link %s: %w", linkName, err)
	}

	ones, _ := net.IPMask(mask[:]).Size()
	ipNet := &net.IPNet{IP: net.IP(addr[:]), Mask: net.CIDRMask(ones, 32)}
	if err := netlink.AddrReplace(link, &netlink.Addr{IPNet: ipNet}); err != nil {
		return fmt.Errorf("router: set address on %s: %w", linkName, err)
	}

	if mtu > 0 {
		if err := netlink.LinkSetMTU(link, mtu); err != nil {
			return fmt.Errorf("router: set MTU on %s: %w", linkName, err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("router: set %s up: %w", linkName, err)
	}
	return nil
}

// SeedArpFromKernel copies the kernel's IPv4 neighbor table for
// linkName into arp, so replies to hosts the kernel already knows about
// don't need a fresh ARP resolution before the first forwarded packet.
func SeedArpFromKernel(linkName string, arp *ArpTable) error {
	link, err := netlink.LinkByName(linkName)
	if err != nil {
		return fmt.Errorf("router: lookup link %s: %w", linkName, err)
	}

	neighs, err := netlink.NeighList(link.Attrs().Index, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("router: list neighbors on %s: %w", linkName, err)
	}

	for _, n := range neighs {
		if n.IP.To4() == nil || len(n.HardwareAddr) != 6 {
			continue
		}
		var ip [4]byte
		var mac [6]byte
		copy(ip[:], n.IP.To4())
		copy(mac[:], n.HardwareAddr)
		arp.Set(ip, mac, Ethernet)
	}
	return nil
}
