package tunbridge

/*------------------------------------------------------------------
 *
 * Purpose:	Linux TUN device creation via the TUNSETIFF ioctl: a
 *		byte-oriented datagram source/sink for whole IPv4
 *		packets, with no Ethernet framing.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kc2tty/acoustilink/internal/phy"
)

// MTU is the MAC's per-frame payload cap; Open sets the interface MTU to
// it so that TUN never hands the acoustic MAC a packet it would itself
// have to fragment further downstream.
const MTU = phy.MaxFrameDataSize

const (
	ifNameSize = 16
	iffTUN     = 0x0001
	iffNoPI    = 0x1000
	tunSetIff  = 0x400454ca // _IOW('T', 202, int), hard-coded for amd64/arm64 Linux
)

type ifReq struct {
	Name  [ifNameSize]byte
	Flags uint16
	_     [22]byte
}

// Device is an open TUN interface.
type Device struct {
	file *os.File
	Name string
}

// Open creates (or attaches to) a TUN interface named name, in
// no-packet-info mode so Read/Write deal in raw IPv4 packets only, and
// sets its MTU to MTU.
func Open(name string) (*Device, error) {
	f, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tunbridge: open /dev/net/tun: %w", err)
	}

	var req ifReq
	copy(req.Name[:], name)
	req.Flags = iffTUN | iffNoPI

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), tunSetIff, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		f.Close()
		return nil, fmt.Errorf("tunbridge: TUNSETIFF: %w", errno)
	}

	actualName := string(req.Name[:])
	for i, b := range req.Name {
		if b == 0 {
			actualName = string(req.Name[:i])
			break
		}
	}

	ctl, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err == nil {
		defer unix.Close(ctl)
		var ifr *unix.Ifreq
		if ifr, err = unix.NewIfreq(actualName); err == nil {
			ifr.SetUint32(MTU)
			err = unix.IoctlIfreq(ctl, unix.SIOCSIFMTU, ifr)
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("tunbridge: set MTU %d on %s: %w", MTU, actualName, err)
	}

	return &Device{file: f, Name: actualName}, nil
}

// Read reads one packet into buf, returning its length.
func (d *Device) Read(buf []byte) (int, error) {
	return d.file.Read(buf)
}

// Write writes one complete packet.
func (d *Device) Write(packet []byte) error {
	_, err := d.file.Write(packet)
	return err
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return d.file.Close()
}
