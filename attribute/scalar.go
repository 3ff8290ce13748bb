package attribute

import (
	"fmt"
	"net/netip"

	"bgpd/bgp"
	"bgpd/stream"
)

// OriginAttr is the ORIGIN attribute (RFC 4271 §5.1.1): a single byte,
// well-known mandatory.
type OriginAttr struct {
	flags Flags
	Value Origin
}

func (a *OriginAttr) Code() Code   { return CodeOrigin }
func (a *OriginAttr) Flags() Flags { return FlagTransitive }
func (a *OriginAttr) Encode(Context) ([]byte, error) {
	return []byte{byte(a.Value)}, nil
}

func init() {
	register(CodeOrigin, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 1 {
			return nil, fmt.Errorf("origin: want 1 byte, got %d", len(body))
		}
		return &OriginAttr{flags: flags, Value: Origin(body[0])}, nil
	})
}

// NextHopAttr is the NEXT_HOP attribute (RFC 4271 §5.1.3): an IPv4 address,
// used only for IPv4 unicast/multicast NLRIs carried in the base UPDATE
// body - every other family carries its next hop inside MP_REACH_NLRI
// (spec.md §4.2 "Emission").
type NextHopAttr struct {
	flags Flags
	Addr  netip.Addr
}

func (a *NextHopAttr) Code() Code   { return CodeNextHop }
func (a *NextHopAttr) Flags() Flags { return FlagTransitive }
func (a *NextHopAttr) Encode(Context) ([]byte, error) {
	if !a.Addr.Is4() {
		return nil, fmt.Errorf("next-hop: %s is not an IPv4 address", a.Addr)
	}
	b := a.Addr.As4()
	return b[:], nil
}

func init() {
	register(CodeNextHop, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 4 {
			return nil, fmt.Errorf("next-hop: want 4 bytes, got %d", len(body))
		}
		addr := netip.AddrFrom4([4]byte(body))
		return &NextHopAttr{flags: flags, Addr: addr}, nil
	})
}

// MultiExitDisc is the MULTI_EXIT_DISC attribute (RFC 4271 §5.1.4).
type MultiExitDisc struct {
	flags Flags
	Value uint32
}

func (a *MultiExitDisc) Code() Code   { return CodeMultiExitDisc }
func (a *MultiExitDisc) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *MultiExitDisc) Encode(Context) ([]byte, error) {
	return stream.PutUint32(nil, a.Value), nil
}

func init() {
	register(CodeMultiExitDisc, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 4 {
			return nil, fmt.Errorf("multi-exit-disc: want 4 bytes, got %d", len(body))
		}
		cur := stream.New(body)
		v, _ := cur.Uint32()
		return &MultiExitDisc{flags: flags, Value: v}, nil
	})
}

// LocalPref is the LOCAL_PREF attribute (RFC 4271 §5.1.5): well-known,
// mandatory only between IBGP peers (spec.md §4.2 "Emission").
type LocalPref struct {
	flags Flags
	Value uint32
}

func (a *LocalPref) Code() Code   { return CodeLocalPref }
func (a *LocalPref) Flags() Flags { return FlagTransitive }
func (a *LocalPref) Encode(Context) ([]byte, error) {
	return stream.PutUint32(nil, a.Value), nil
}

func init() {
	register(CodeLocalPref, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 4 {
			return nil, fmt.Errorf("local-pref: want 4 bytes, got %d", len(body))
		}
		cur := stream.New(body)
		v, _ := cur.Uint32()
		return &LocalPref{flags: flags, Value: v}, nil
	})
}

// AtomicAggregate is the ATOMIC_AGGREGATE attribute (RFC 4271 §5.1.6): a
// zero-length marker.
type AtomicAggregate struct {
	flags Flags
}

func (a *AtomicAggregate) Code() Code     { return CodeAtomicAggregate }
func (a *AtomicAggregate) Flags() Flags { return FlagTransitive }
func (a *AtomicAggregate) Encode(Context) ([]byte, error) { return nil, nil }

func init() {
	register(CodeAtomicAggregate, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 0 {
			return nil, fmt.Errorf("atomic-aggregate: want 0 bytes, got %d", len(body))
		}
		return &AtomicAggregate{flags: flags}, nil
	})
}

// Aggregator is the AGGREGATOR attribute (RFC 4271 §5.1.7, extended to
// 4-byte ASNs by RFC 6793 §4.3 when negotiated). AS4_AGGREGATOR mirrors it
// for mixed-capability sessions. Unlike AS4_PATH it is not merged:
// AS4_AGGREGATOR is decoded into its own Aggregator value under its own
// code, and AGGREGATOR's ASN is left as received when both are present.
type Aggregator struct {
	flags Flags
	code  Code
	ASN   bgp.ASN
	Addr  netip.Addr
}

func (a *Aggregator) Code() Code   { return a.code }
func (a *Aggregator) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *Aggregator) Encode(ctx Context) ([]byte, error) {
	var out []byte
	if a.code == CodeAS4Aggregator || ctx.FourByteASN {
		out = stream.PutUint32(out, uint32(a.ASN))
	} else {
		out = stream.PutUint16(out, uint16(a.ASN))
	}
	b := a.Addr.As4()
	return append(out, b[:]...), nil
}

func decodeAggregator(code Code, fourByte bool) decodeFunc {
	return func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		width := 2
		if fourByte || ctx.FourByteASN {
			width = 4
		}
		if len(body) != width+4 {
			return nil, fmt.Errorf("aggregator: want %d bytes, got %d", width+4, len(body))
		}
		cur := stream.New(body)
		var asn uint32
		if width == 4 {
			asn, _ = cur.Uint32()
		} else {
			v, _ := cur.Uint16()
			asn = uint32(v)
		}
		addrBytes, _ := cur.Bytes(4)
		addr := netip.AddrFrom4([4]byte(addrBytes))
		return &Aggregator{flags: flags, code: code, ASN: bgp.ASN(asn), Addr: addr}, nil
	}
}

func init() {
	register(CodeAggregator, decodeAggregator(CodeAggregator, false))
	register(CodeAS4Aggregator, decodeAggregator(CodeAS4Aggregator, true))
}

// OriginatorID is the ORIGINATOR_ID attribute (RFC 4456 §8): a route
// reflector's BGP Identifier, set once on reflection and never overwritten.
type OriginatorID struct {
	flags Flags
	ID    bgp.Identifier
}

func (a *OriginatorID) Code() Code   { return CodeOriginatorID }
func (a *OriginatorID) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *OriginatorID) Encode(Context) ([]byte, error) {
	return stream.PutUint32(nil, uint32(a.ID)), nil
}

func init() {
	register(CodeOriginatorID, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) != 4 {
			return nil, fmt.Errorf("originator-id: want 4 bytes, got %d", len(body))
		}
		cur := stream.New(body)
		v, _ := cur.Uint32()
		return &OriginatorID{flags: flags, ID: bgp.Identifier(v)}, nil
	})
}

// ClusterList is the CLUSTER_LIST attribute (RFC 4456 §8): an ordered list
// of 4-byte cluster IDs, prepended to on each reflection hop.
type ClusterList struct {
	flags   Flags
	Cluster []uint32
}

func (a *ClusterList) Code() Code   { return CodeClusterList }
func (a *ClusterList) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *ClusterList) Encode(Context) ([]byte, error) {
	var out []byte
	for _, c := range a.Cluster {
		out = stream.PutUint32(out, c)
	}
	return out, nil
}

func init() {
	register(CodeClusterList, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body)%4 != 0 {
			return nil, fmt.Errorf("cluster-list: length %d not a multiple of 4", len(body))
		}
		cur := stream.New(body)
		var ids []uint32
		for cur.Remaining() > 0 {
			v, _ := cur.Uint32()
			ids = append(ids, v)
		}
		return &ClusterList{flags: flags, Cluster: ids}, nil
	})
}

// AIGP is the Accumulated IGP Metric attribute (RFC 7311): a TLV set, of
// which only TLV type 1 (the accumulated metric, a uint64) is defined.
// A body with no well-formed metric TLV is preserved verbatim for
// re-emission; once a metric TLV is decoded, only that TLV is re-emitted
// and any other TLVs are dropped.
type AIGP struct {
	flags  Flags
	Metric uint64
	hasMetric bool
	raw    []byte
}

func (a *AIGP) Code() Code   { return CodeAIGP }
func (a *AIGP) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *AIGP) Encode(Context) ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	out := []byte{1, 0, 11}
	var b [8]byte
	m := a.Metric
	for i := 7; i >= 0; i-- {
		b[i] = byte(m)
		m >>= 8
	}
	return append(out, b[:]...), nil
}

func init() {
	register(CodeAIGP, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		cur := stream.New(body)
		a := &AIGP{flags: flags}
		for cur.Remaining() > 0 {
			tlvType, err := cur.Byte()
			if err != nil {
				return nil, fmt.Errorf("aigp: truncated tlv header")
			}
			tlvLen, err := cur.Uint16()
			if err != nil {
				return nil, fmt.Errorf("aigp: truncated tlv header")
			}
			if tlvLen < 3 {
				return nil, fmt.Errorf("aigp: tlv length %d too short", tlvLen)
			}
			value, err := cur.Bytes(int(tlvLen) - 3)
			if err != nil {
				return nil, fmt.Errorf("aigp: truncated tlv value")
			}
			if tlvType == 1 && len(value) == 8 {
				var m uint64
				for _, bb := range value {
					m = m<<8 | uint64(bb)
				}
				a.Metric = m
				a.hasMetric = true
			}
		}
		if !a.hasMetric {
			a.raw = append([]byte(nil), body...)
		}
		return a, nil
	})
}
