// Package transport owns the TCP connection a session is carried over:
// dialing/accepting, MD5 signature and GTSM hardening, and the resumable
// framed reader/writer the session driver polls (spec.md §4.6 "Connection
// transport"). It also keeps the teacher's BGP-identifier auto-discovery.
//
// Grounded on the teacher's network/network.go (identifier discovery,
// ipToUint32/Uint32ToIP) and fsm/fsm.go's dial(); the MD5/TTL/GTSM socket
// option layout mirrors ExaBGP's reactor/network/tcp.py setsockopt calls.
package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// FindIdentifier picks a router-id candidate from the host's interfaces: the
// first global-unicast IPv4 address found (private ranges included). Selection is arbitrary, as in
// the teacher's implementation - operators who care set one explicitly.
func FindIdentifier() (netip.Addr, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, iface := range ifs {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			p, err := netip.ParsePrefix(a.String())
			if err != nil {
				continue
			}
			addr := p.Addr()
			if !addr.Is4() {
				continue
			}
			if addr.IsGlobalUnicast() {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("transport: no valid BGP identifier found on any local interface")
}
