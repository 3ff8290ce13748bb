package nlri

import (
	"fmt"
	"net/netip"

	"bgpd/bgp"
	"bgpd/stream"
)

// Inet is a plain unicast/multicast IPv4 or IPv6 prefix, optionally
// Add-Path tagged (spec.md §4.3 "Inet/Inet6 unicast & multicast").
type Inet struct {
	family bgp.Family
	Prefix netip.Prefix
	PathID bgp.PathID
	HasID  bool
}

func (n *Inet) Family() bgp.Family { return n.family }

// NewInet builds an Inet entry directly, for callers (like the outbound
// change pipeline) that construct NLRIs rather than decoding them off the
// wire - e.g. expanding a "split /N" hint into sub-prefixes.
func NewInet(family bgp.Family, prefix netip.Prefix, pathID bgp.PathID, hasID bool) *Inet {
	return &Inet{family: family, Prefix: prefix, PathID: pathID, HasID: hasID}
}

func (n *Inet) Encode(addPath bool) ([]byte, error) {
	var out []byte
	if addPath {
		out = stream.PutUint32(out, uint32(n.PathID))
	}
	bits := 32
	if n.family.AFI == bgp.AFIIPv6 {
		bits = 128
	}
	if n.Prefix.Addr().BitLen() != bits {
		return nil, fmt.Errorf("inet: prefix %s does not match family %s", n.Prefix, n.family)
	}
	return append(out, bgp.PutCIDR(n.Prefix)...), nil
}

func decodeInet(family bgp.Family, bits int) decodeFunc {
	return func(b []byte, addPath bool) (NLRI, []byte, error) {
		n := &Inet{family: family}
		if addPath {
			if len(b) < 4 {
				return nil, nil, fmt.Errorf("inet: truncated path-id")
			}
			cur := stream.New(b[:4])
			v, _ := cur.Uint32()
			n.PathID, n.HasID, b = bgp.PathID(v), true, b[4:]
		}
		p, rest, err := bgp.ParseCIDR(b, bits)
		if err != nil {
			return nil, nil, err
		}
		n.Prefix = p
		return n, rest, nil
	}
}

func init() {
	register(bgp.FamilyIPv4Unicast, decodeInet(bgp.FamilyIPv4Unicast, 32))
	register(bgp.FamilyIPv4Multicast, decodeInet(bgp.FamilyIPv4Multicast, 32))
	register(bgp.FamilyIPv6Unicast, decodeInet(bgp.FamilyIPv6Unicast, 128))
}

// Labeled is a labeled-unicast NLRI: an MPLS label stack prepended to the
// prefix, with the length byte measured in bits *including* the labels
// (spec.md §4.3 "Labeled unicast").
type Labeled struct {
	family bgp.Family
	Labels bgp.Labels
	Prefix netip.Prefix
	PathID bgp.PathID
	HasID  bool
}

func (n *Labeled) Family() bgp.Family { return n.family }

func (n *Labeled) Encode(addPath bool) ([]byte, error) {
	var out []byte
	if addPath {
		out = stream.PutUint32(out, uint32(n.PathID))
	}
	prefixBits := n.Prefix.Bits()
	labelBits := len(n.Labels) * 24
	lengthByte := byte(labelBits + prefixBits)
	out = append(out, lengthByte)
	out = append(out, n.Labels.Bytes()...)
	addrBytes := n.Prefix.Addr().AsSlice()
	nBytes := (prefixBits + 7) / 8
	out = append(out, addrBytes[:nBytes]...)
	return out, nil
}

func decodeLabeled(family bgp.Family, bits int) decodeFunc {
	return func(b []byte, addPath bool) (NLRI, []byte, error) {
		n := &Labeled{family: family}
		if addPath {
			if len(b) < 4 {
				return nil, nil, fmt.Errorf("labeled-unicast: truncated path-id")
			}
			cur := stream.New(b[:4])
			v, _ := cur.Uint32()
			n.PathID, n.HasID, b = bgp.PathID(v), true, b[4:]
		}
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("labeled-unicast: truncated length byte")
		}
		totalBits := int(b[0])
		b = b[1:]
		labels, rest, err := bgp.ParseLabels(b)
		if err != nil {
			return nil, nil, err
		}
		prefixBits := totalBits - len(labels)*24
		if prefixBits < 0 || prefixBits > bits {
			return nil, nil, fmt.Errorf("labeled-unicast: bad prefix length %d", prefixBits)
		}
		n.Labels = labels
		p, rest2, err := bgp.ParseCIDR(append([]byte{byte(prefixBits)}, rest...), bits)
		if err != nil {
			return nil, nil, err
		}
		n.Prefix = p
		return n, rest2, nil
	}
}

func init() {
	register(bgp.FamilyIPv4LabeledUni, decodeLabeled(bgp.FamilyIPv4LabeledUni, 32))
	register(bgp.FamilyIPv6LabeledUni, decodeLabeled(bgp.FamilyIPv6LabeledUni, 128))
}

// VPN is an MPLS-VPN NLRI: labels, then an 8-byte RD, then the prefix
// (spec.md §4.3 "MPLS-VPN").
type VPN struct {
	family bgp.Family
	Labels bgp.Labels
	RD     bgp.RD
	Prefix netip.Prefix
	PathID bgp.PathID
	HasID  bool
}

func (n *VPN) Family() bgp.Family { return n.family }

func (n *VPN) Encode(addPath bool) ([]byte, error) {
	var out []byte
	if addPath {
		out = stream.PutUint32(out, uint32(n.PathID))
	}
	prefixBits := n.Prefix.Bits()
	totalBits := len(n.Labels)*24 + 8*8 + prefixBits
	out = append(out, byte(totalBits))
	out = append(out, n.Labels.Bytes()...)
	out = append(out, n.RD[:]...)
	addrBytes := n.Prefix.Addr().AsSlice()
	nBytes := (prefixBits + 7) / 8
	out = append(out, addrBytes[:nBytes]...)
	return out, nil
}

func decodeVPN(family bgp.Family, bits int) decodeFunc {
	return func(b []byte, addPath bool) (NLRI, []byte, error) {
		n := &VPN{family: family}
		if addPath {
			if len(b) < 4 {
				return nil, nil, fmt.Errorf("mpls-vpn: truncated path-id")
			}
			cur := stream.New(b[:4])
			v, _ := cur.Uint32()
			n.PathID, n.HasID, b = bgp.PathID(v), true, b[4:]
		}
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("mpls-vpn: truncated length byte")
		}
		totalBits := int(b[0])
		b = b[1:]
		labels, rest, err := bgp.ParseLabels(b)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < 8 {
			return nil, nil, fmt.Errorf("mpls-vpn: truncated RD")
		}
		rd, err := bgp.ParseRD(rest[:8])
		if err != nil {
			return nil, nil, err
		}
		rest = rest[8:]
		prefixBits := totalBits - len(labels)*24 - 8*8
		if prefixBits < 0 || prefixBits > bits {
			return nil, nil, fmt.Errorf("mpls-vpn: bad prefix length %d", prefixBits)
		}
		p, rest2, err := bgp.ParseCIDR(append([]byte{byte(prefixBits)}, rest...), bits)
		if err != nil {
			return nil, nil, err
		}
		n.Labels = labels
		n.RD = rd
		n.Prefix = p
		return n, rest2, nil
	}
}

func init() {
	register(bgp.FamilyIPv4MPLSVPN, decodeVPN(bgp.FamilyIPv4MPLSVPN, 32))
	register(bgp.FamilyIPv6MPLSVPN, decodeVPN(bgp.FamilyIPv6MPLSVPN, 128))
}
