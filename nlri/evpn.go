package nlri

import (
	"fmt"
	"net/netip"

	"bgpd/bgp"
	"bgpd/stream"
)

// EVPN route types (RFC 7432 §7).
const (
	EVPNEthernetAutoDiscovery uint8 = 1
	EVPNMACIPAdvertisement    uint8 = 2
	EVPNInclusiveMulticast    uint8 = 3
	EVPNEthernetSegment       uint8 = 4
	EVPNIPPrefix              uint8 = 5
)

// ESI is a 10-byte Ethernet Segment Identifier (RFC 7432 §5).
type ESI [10]byte

// EVPN wraps one typed EVPN route; Route holds the decoded body for the
// route types this module understands, and Raw preserves the body
// verbatim for anything else so it survives re-emission unchanged
// (spec.md §4.3 "EVPN ... Body decoding branches on the route type").
type EVPN struct {
	RouteType uint8
	Route     interface{}
	Raw       []byte
}

func (n *EVPN) Family() bgp.Family { return bgp.FamilyL2VPNEVPN }

func (n *EVPN) Encode(addPath bool) ([]byte, error) {
	var body []byte
	switch r := n.Route.(type) {
	case *EVPNAutoDiscovery:
		body = r.encode()
	case *EVPNMACIP:
		body = r.encode()
	case *EVPNInclusiveMulticastRoute:
		body = r.encode()
	case *EVPNEthernetSegmentRoute:
		body = r.encode()
	case *EVPNIPPrefixRoute:
		body = r.encode()
	default:
		body = n.Raw
	}
	if len(body) > 255 {
		return nil, fmt.Errorf("evpn: route body %d bytes exceeds 255", len(body))
	}
	out := []byte{n.RouteType, byte(len(body))}
	return append(out, body...), nil
}

// EVPNAutoDiscovery is route type 1.
type EVPNAutoDiscovery struct {
	RD          bgp.RD
	ESI         ESI
	EthernetTag uint32
	Label       bgp.Labels
}

func (r *EVPNAutoDiscovery) encode() []byte {
	out := append([]byte{}, r.RD[:]...)
	out = append(out, r.ESI[:]...)
	out = stream.PutUint32(out, r.EthernetTag)
	return append(out, r.Label.Bytes()...)
}

// EVPNMACIP is route type 2.
type EVPNMACIP struct {
	RD          bgp.RD
	ESI         ESI
	EthernetTag uint32
	MAC         [6]byte
	IP          netip.Addr
	Labels      bgp.Labels
}

func (r *EVPNMACIP) encode() []byte {
	out := append([]byte{}, r.RD[:]...)
	out = append(out, r.ESI[:]...)
	out = stream.PutUint32(out, r.EthernetTag)
	out = append(out, 48, r.MAC[0], r.MAC[1], r.MAC[2], r.MAC[3], r.MAC[4], r.MAC[5])
	if r.IP.IsValid() {
		ab := r.IP.AsSlice()
		out = append(out, byte(len(ab)*8))
		out = append(out, ab...)
	} else {
		out = append(out, 0)
	}
	return append(out, r.Labels.Bytes()...)
}

// EVPNInclusiveMulticastRoute is route type 3.
type EVPNInclusiveMulticastRoute struct {
	RD          bgp.RD
	EthernetTag uint32
	IP          netip.Addr
}

func (r *EVPNInclusiveMulticastRoute) encode() []byte {
	out := append([]byte{}, r.RD[:]...)
	out = stream.PutUint32(out, r.EthernetTag)
	ab := r.IP.AsSlice()
	out = append(out, byte(len(ab)*8))
	return append(out, ab...)
}

// EVPNEthernetSegmentRoute is route type 4.
type EVPNEthernetSegmentRoute struct {
	RD  bgp.RD
	ESI ESI
	IP  netip.Addr
}

func (r *EVPNEthernetSegmentRoute) encode() []byte {
	out := append([]byte{}, r.RD[:]...)
	out = append(out, r.ESI[:]...)
	ab := r.IP.AsSlice()
	out = append(out, byte(len(ab)*8))
	return append(out, ab...)
}

// EVPNIPPrefixRoute is route type 5 (RFC 9136).
type EVPNIPPrefixRoute struct {
	RD          bgp.RD
	ESI         ESI
	EthernetTag uint32
	Prefix      netip.Prefix
	GatewayIP   netip.Addr
	Label       bgp.Labels
}

func (r *EVPNIPPrefixRoute) encode() []byte {
	out := append([]byte{}, r.RD[:]...)
	out = append(out, r.ESI[:]...)
	out = stream.PutUint32(out, r.EthernetTag)
	out = append(out, byte(r.Prefix.Bits()))
	ab := r.Prefix.Addr().AsSlice()
	out = append(out, ab...)
	gb := r.GatewayIP.AsSlice()
	out = append(out, gb...)
	return append(out, r.Label.Bytes()...)
}

func decodeEVPN(b []byte, addPath bool) (NLRI, []byte, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("evpn: truncated header")
	}
	routeType := b[0]
	length := int(b[1])
	b = b[2:]
	if len(b) < length {
		return nil, nil, fmt.Errorf("evpn: truncated body")
	}
	body := b[:length]
	rest := b[length:]

	n := &EVPN{RouteType: routeType}
	switch routeType {
	case EVPNEthernetAutoDiscovery:
		if len(body) < 22 {
			break
		}
		rd, err := bgp.ParseRD(body[:8])
		if err != nil {
			return nil, nil, err
		}
		var esi ESI
		copy(esi[:], body[8:18])
		cur := stream.New(body[18:22])
		tag, _ := cur.Uint32()
		labels, _, err := bgp.ParseLabels(body[22:])
		if err != nil {
			return nil, nil, err
		}
		n.Route = &EVPNAutoDiscovery{RD: rd, ESI: esi, EthernetTag: tag, Label: labels}
	case EVPNMACIPAdvertisement:
		if len(body) < 25 {
			break
		}
		rd, err := bgp.ParseRD(body[:8])
		if err != nil {
			return nil, nil, err
		}
		var esi ESI
		copy(esi[:], body[8:18])
		cur := stream.New(body[18:22])
		tag, _ := cur.Uint32()
		macLenBits := body[22]
		if macLenBits != 48 || len(body) < 29 {
			break
		}
		var mac [6]byte
		copy(mac[:], body[23:29])
		rest2 := body[29:]
		if len(rest2) < 1 {
			break
		}
		ipLenBits := rest2[0]
		rest2 = rest2[1:]
		var ip netip.Addr
		switch ipLenBits {
		case 0:
		case 32:
			ip = netip.AddrFrom4([4]byte(rest2[:4]))
			rest2 = rest2[4:]
		case 128:
			ip = netip.AddrFrom16([16]byte(rest2[:16]))
			rest2 = rest2[16:]
		default:
			return nil, nil, fmt.Errorf("evpn: bad mac/ip addr length %d", ipLenBits)
		}
		labels, _, err := bgp.ParseLabels(rest2)
		if err != nil {
			return nil, nil, err
		}
		n.Route = &EVPNMACIP{RD: rd, ESI: esi, EthernetTag: tag, MAC: mac, IP: ip, Labels: labels}
	case EVPNInclusiveMulticast:
		if len(body) < 13 {
			break
		}
		rd, err := bgp.ParseRD(body[:8])
		if err != nil {
			return nil, nil, err
		}
		cur := stream.New(body[8:12])
		tag, _ := cur.Uint32()
		ipLenBits := body[12]
		rest2 := body[13:]
		var ip netip.Addr
		if ipLenBits == 32 && len(rest2) >= 4 {
			ip = netip.AddrFrom4([4]byte(rest2[:4]))
		} else if ipLenBits == 128 && len(rest2) >= 16 {
			ip = netip.AddrFrom16([16]byte(rest2[:16]))
		}
		n.Route = &EVPNInclusiveMulticastRoute{RD: rd, EthernetTag: tag, IP: ip}
	case EVPNEthernetSegment:
		if len(body) < 19 {
			break
		}
		rd, err := bgp.ParseRD(body[:8])
		if err != nil {
			return nil, nil, err
		}
		var esi ESI
		copy(esi[:], body[8:18])
		ipLenBits := body[18]
		rest2 := body[19:]
		var ip netip.Addr
		if ipLenBits == 32 && len(rest2) >= 4 {
			ip = netip.AddrFrom4([4]byte(rest2[:4]))
		} else if ipLenBits == 128 && len(rest2) >= 16 {
			ip = netip.AddrFrom16([16]byte(rest2[:16]))
		}
		n.Route = &EVPNEthernetSegmentRoute{RD: rd, ESI: esi, IP: ip}
	}
	if n.Route == nil {
		n.Raw = append([]byte(nil), body...)
	}
	return n, rest, nil
}

func init() {
	register(bgp.FamilyL2VPNEVPN, decodeEVPN)
}
