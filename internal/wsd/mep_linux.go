//go:build linux

package wsd

import (
	"net"

	"golang.org/x/sys/unix"
)

// suppressMulticastAll disables IP_MULTICAST_ALL / IPV6_MULTICAST_ALL on
// conn. Linux, uniquely among the platforms this daemon targets, delivers
// a multicast datagram to every socket that joined the group on *any*
// interface unless this is turned off -- without it a MEP would see
// datagrams meant for a sibling MEP on a different interface. Other
// platforms deliver per-interface already, so this has nothing to suppress
// there; see the non-Linux counterpart to this file.
func suppressMulticastAll(conn *net.UDPConn, family Family) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}

	raw.Control(func(fd uintptr) {
		if family == FamilyV4 {
			unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_ALL, 0)
		} else {
			unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_ALL, 0)
		}
	})
}
