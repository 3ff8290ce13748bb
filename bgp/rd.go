package bgp

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// RDType is the 2-byte type field that selects a Route Distinguisher's
// administrative/assigned-number shapes (RFC 4364 §4.2).
type RDType uint16

const (
	RDTypeASN2    RDType = 0 // 2-byte ASN : 4-byte assigned number
	RDTypeIPv4    RDType = 1 // 4-byte IPv4 address : 2-byte assigned number
	RDTypeASN4    RDType = 2 // 4-byte ASN : 2-byte assigned number
)

// RD is an 8-byte Route Distinguisher. It is immutable once constructed
// and compared/hashed by its canonical 8-byte form (spec.md §3).
type RD [8]byte

// NewRDASN2 builds a type-0 RD from a 2-byte ASN and a 4-byte assigned number.
func NewRDASN2(asn uint16, assigned uint32) RD {
	var rd RD
	binary.BigEndian.PutUint16(rd[0:2], uint16(RDTypeASN2))
	binary.BigEndian.PutUint16(rd[2:4], asn)
	binary.BigEndian.PutUint32(rd[4:8], assigned)
	return rd
}

// NewRDIPv4 builds a type-1 RD from an IPv4 address and a 2-byte assigned number.
func NewRDIPv4(addr netip.Addr, assigned uint16) RD {
	var rd RD
	binary.BigEndian.PutUint16(rd[0:2], uint16(RDTypeIPv4))
	a4 := addr.As4()
	copy(rd[2:6], a4[:])
	binary.BigEndian.PutUint16(rd[6:8], assigned)
	return rd
}

// NewRDASN4 builds a type-2 RD from a 4-byte ASN and a 2-byte assigned number.
func NewRDASN4(asn uint32, assigned uint16) RD {
	var rd RD
	binary.BigEndian.PutUint16(rd[0:2], uint16(RDTypeASN4))
	binary.BigEndian.PutUint32(rd[2:6], asn)
	binary.BigEndian.PutUint16(rd[6:8], assigned)
	return rd
}

// Type returns this RD's administrative type.
func (rd RD) Type() RDType {
	return RDType(binary.BigEndian.Uint16(rd[0:2]))
}

// ParseRD reads an 8-byte Route Distinguisher.
func ParseRD(b []byte) (RD, error) {
	if len(b) < 8 {
		return RD{}, fmt.Errorf("route distinguisher: need 8 bytes, got %d", len(b))
	}
	var rd RD
	copy(rd[:], b[:8])
	return rd, nil
}

// String renders an RD in the conventional admin:assigned form; the type
// field is not printed.
func (rd RD) String() string {
	switch rd.Type() {
	case RDTypeASN2:
		asn := binary.BigEndian.Uint16(rd[2:4])
		assigned := binary.BigEndian.Uint32(rd[4:8])
		return fmt.Sprintf("%d:%d", asn, assigned)
	case RDTypeIPv4:
		ip := netip.AddrFrom4([4]byte{rd[2], rd[3], rd[4], rd[5]})
		assigned := binary.BigEndian.Uint16(rd[6:8])
		return fmt.Sprintf("%s:%d", ip, assigned)
	case RDTypeASN4:
		asn := binary.BigEndian.Uint32(rd[2:6])
		assigned := binary.BigEndian.Uint16(rd[6:8])
		return fmt.Sprintf("%d:%d", asn, assigned)
	default:
		return fmt.Sprintf("rd(%x)", [8]byte(rd))
	}
}
