package attribute

import (
	"fmt"
	"net/netip"

	"bgpd/bgp"
	"bgpd/nlri"
	"bgpd/stream"
)

// MPReach is the MP_REACH_NLRI attribute (RFC 4760 §3): every family other
// than IPv4 unicast/multicast carries its next hop and NLRIs here instead
// of in the base UPDATE body (spec.md §4.2 "Emission", §4.3 "MP_REACH /
// MP_UNREACH").
type MPReach struct {
	flags    Flags
	Family   bgp.Family
	NextHop  []byte // raw next-hop bytes, length family-dependent
	Entries  []nlri.NLRI
	AddPath  bool
}

func (a *MPReach) Code() Code   { return CodeMPReachNLRI }
func (a *MPReach) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *MPReach) Encode(ctx Context) ([]byte, error) {
	out := stream.PutUint16(nil, uint16(a.Family.AFI))
	out = append(out, byte(a.Family.SAFI))
	out = append(out, byte(len(a.NextHop)))
	out = append(out, a.NextHop...)
	out = append(out, 0) // reserved
	nlriBytes, err := nlri.EncodeAll(a.Entries, a.AddPath)
	if err != nil {
		return nil, err
	}
	return append(out, nlriBytes...), nil
}

func init() {
	register(CodeMPReachNLRI, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		cur := stream.New(body)
		afi, err := cur.Uint16()
		if err != nil {
			return nil, fmt.Errorf("mp-reach: truncated afi")
		}
		safiByte, err := cur.Byte()
		if err != nil {
			return nil, fmt.Errorf("mp-reach: truncated safi")
		}
		family := bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(safiByte)}
		nhLen, err := cur.Byte()
		if err != nil {
			return nil, fmt.Errorf("mp-reach: truncated next-hop length")
		}
		nh, err := cur.Bytes(int(nhLen))
		if err != nil {
			return nil, fmt.Errorf("mp-reach: truncated next-hop")
		}
		if _, err := cur.Byte(); err != nil {
			return nil, fmt.Errorf("mp-reach: truncated reserved byte")
		}
		entries, err := nlri.DecodeAll(family, cur.Rest(), ctx.AddPathReceive[family])
		if err != nil {
			return nil, fmt.Errorf("mp-reach: %w", err)
		}
		return &MPReach{flags: flags, Family: family, NextHop: append([]byte(nil), nh...), Entries: entries, AddPath: ctx.AddPathReceive[family]}, nil
	})
}

// NextHopAddr interprets the raw next-hop bytes as a netip.Addr, where
// that is meaningful (plain v4/v6 next hops, not VPN RD-prefixed ones).
func (a *MPReach) NextHopAddr() (netip.Addr, bool) {
	switch len(a.NextHop) {
	case 4:
		return netip.AddrFrom4([4]byte(a.NextHop)), true
	case 16:
		return netip.AddrFrom16([16]byte(a.NextHop)), true
	default:
		return netip.Addr{}, false
	}
}

// MPUnreach is the MP_UNREACH_NLRI attribute (RFC 4760 §4): withdrawals
// for every non-IPv4-unicast/multicast family. An empty Entries list for a
// family is that family's End-of-RIB marker (spec.md §4.4 "Other family
// EORs are an empty MP_UNREACH").
type MPUnreach struct {
	flags   Flags
	Family  bgp.Family
	Entries []nlri.NLRI
	AddPath bool
}

func (a *MPUnreach) Code() Code   { return CodeMPUnreachNLRI }
func (a *MPUnreach) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *MPUnreach) Encode(ctx Context) ([]byte, error) {
	out := stream.PutUint16(nil, uint16(a.Family.AFI))
	out = append(out, byte(a.Family.SAFI))
	nlriBytes, err := nlri.EncodeAll(a.Entries, a.AddPath)
	if err != nil {
		return nil, err
	}
	return append(out, nlriBytes...), nil
}

func init() {
	register(CodeMPUnreachNLRI, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		cur := stream.New(body)
		afi, err := cur.Uint16()
		if err != nil {
			return nil, fmt.Errorf("mp-unreach: truncated afi")
		}
		safiByte, err := cur.Byte()
		if err != nil {
			return nil, fmt.Errorf("mp-unreach: truncated safi")
		}
		family := bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(safiByte)}
		var entries []nlri.NLRI
		if cur.Remaining() > 0 {
			entries, err = nlri.DecodeAll(family, cur.Rest(), ctx.AddPathReceive[family])
			if err != nil {
				return nil, fmt.Errorf("mp-unreach: %w", err)
			}
		}
		return &MPUnreach{flags: flags, Family: family, Entries: entries, AddPath: ctx.AddPathReceive[family]}, nil
	})
}
