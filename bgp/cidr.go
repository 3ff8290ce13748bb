package bgp

import (
	"fmt"
	"net/netip"
)

// ParseCIDR reads a wire-form prefix: one length byte (bits) followed by
// ceil(length/8) address bytes, zero-padded on the right (spec.md §4.1).
// bits is the address width in bits for this family (32 for IPv4, 128 for
// IPv6); it bounds the accepted prefix length.
func ParseCIDR(b []byte, bits int) (netip.Prefix, []byte, error) {
	if len(b) < 1 {
		return netip.Prefix{}, nil, fmt.Errorf("cidr: empty")
	}
	plen := int(b[0])
	if plen > bits {
		return netip.Prefix{}, nil, fmt.Errorf("cidr: prefix length %d exceeds %d-bit address", plen, bits)
	}
	nbytes := (plen + 7) / 8
	if len(b) < 1+nbytes {
		return netip.Prefix{}, nil, fmt.Errorf("cidr: truncated, need %d bytes have %d", nbytes, len(b)-1)
	}
	addrBytes := make([]byte, bits/8)
	copy(addrBytes, b[1:1+nbytes])

	var addr netip.Addr
	switch bits {
	case 32:
		var a4 [4]byte
		copy(a4[:], addrBytes)
		addr = netip.AddrFrom4(a4)
	case 128:
		var a16 [16]byte
		copy(a16[:], addrBytes)
		addr = netip.AddrFrom16(a16)
	default:
		return netip.Prefix{}, nil, fmt.Errorf("cidr: unsupported address width %d bits", bits)
	}
	prefix := netip.PrefixFrom(addr, plen)
	return prefix, b[1+nbytes:], nil
}

// PutCIDR packs a prefix in wire form: length byte + ceil(length/8) address
// bytes, dropping any host bits beyond the announced length.
func PutCIDR(p netip.Prefix) []byte {
	plen := p.Bits()
	nbytes := (plen + 7) / 8
	addr := p.Addr().AsSlice()
	out := make([]byte, 1+nbytes)
	out[0] = byte(plen)
	copy(out[1:], addr[:nbytes])
	return out
}
