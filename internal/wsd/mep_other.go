//go:build !linux

package wsd

import "net"

// suppressMulticastAll is a no-op off Linux: BSD-derived stacks already
// deliver multicast datagrams only to sockets that joined the group on the
// receiving interface, so there is nothing to suppress. See mep_linux.go
// for the platform that actually needs this.
func suppressMulticastAll(conn *net.UDPConn, family Family) {}
