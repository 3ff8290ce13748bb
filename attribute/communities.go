package attribute

import (
	"fmt"

	"bgpd/stream"
)

// Community is a well-known or standard 4-byte community (RFC 1997).
type Community uint32

// Well-known community values (RFC 1997 §4).
const (
	CommunityNoExport        Community = 0xFFFFFF01
	CommunityNoAdvertise     Community = 0xFFFFFF02
	CommunityNoExportSubconf Community = 0xFFFFFF03
)

func (c Community) String() string {
	switch c {
	case CommunityNoExport:
		return "no-export"
	case CommunityNoAdvertise:
		return "no-advertise"
	case CommunityNoExportSubconf:
		return "no-export-subconfed"
	}
	return fmt.Sprintf("%d:%d", uint32(c)>>16, uint32(c)&0xFFFF)
}

// Communities is the COMMUNITIES attribute (RFC 1997).
type Communities struct {
	flags  Flags
	Values []Community
}

func (a *Communities) Code() Code   { return CodeCommunities }
func (a *Communities) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *Communities) Encode(Context) ([]byte, error) {
	var out []byte
	for _, v := range a.Values {
		out = stream.PutUint32(out, uint32(v))
	}
	return out, nil
}

func init() {
	register(CodeCommunities, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body)%4 != 0 {
			return nil, fmt.Errorf("communities: length %d not a multiple of 4", len(body))
		}
		cur := stream.New(body)
		var vals []Community
		for cur.Remaining() > 0 {
			v, _ := cur.Uint32()
			vals = append(vals, Community(v))
		}
		return &Communities{flags: flags, Values: vals}, nil
	})
}

// ExtendedCommunity is one 8-byte extended community (RFC 4360/8092): a
// 1-2 byte type/subtype header followed by a 6-7 byte value, kept opaque
// here since the value's interpretation is family-specific and consumers
// that need it (e.g. route-target import/export) parse the raw bytes
// themselves.
type ExtendedCommunity [8]byte

// ExtendedCommunities is the EXTENDED_COMMUNITIES attribute (RFC 4360).
type ExtendedCommunities struct {
	flags  Flags
	Values []ExtendedCommunity
}

func (a *ExtendedCommunities) Code() Code   { return CodeExtendedCommunities }
func (a *ExtendedCommunities) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *ExtendedCommunities) Encode(Context) ([]byte, error) {
	out := make([]byte, 0, 8*len(a.Values))
	for _, v := range a.Values {
		out = append(out, v[:]...)
	}
	return out, nil
}

func init() {
	register(CodeExtendedCommunities, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body)%8 != 0 {
			return nil, fmt.Errorf("extended-communities: length %d not a multiple of 8", len(body))
		}
		var vals []ExtendedCommunity
		for i := 0; i < len(body); i += 8 {
			var ec ExtendedCommunity
			copy(ec[:], body[i:i+8])
			vals = append(vals, ec)
		}
		return &ExtendedCommunities{flags: flags, Values: vals}, nil
	})
}

// LargeCommunity is one 12-byte large community (RFC 8092): global admin,
// local data part 1, local data part 2.
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

// LargeCommunities is the LARGE_COMMUNITIES attribute (RFC 8092).
type LargeCommunities struct {
	flags  Flags
	Values []LargeCommunity
}

func (a *LargeCommunities) Code() Code   { return CodeLargeCommunities }
func (a *LargeCommunities) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *LargeCommunities) Encode(Context) ([]byte, error) {
	var out []byte
	for _, v := range a.Values {
		out = stream.PutUint32(out, v.GlobalAdmin)
		out = stream.PutUint32(out, v.LocalData1)
		out = stream.PutUint32(out, v.LocalData2)
	}
	return out, nil
}

func init() {
	register(CodeLargeCommunities, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body)%12 != 0 {
			return nil, fmt.Errorf("large-communities: length %d not a multiple of 12", len(body))
		}
		cur := stream.New(body)
		var vals []LargeCommunity
		for cur.Remaining() > 0 {
			ga, _ := cur.Uint32()
			l1, _ := cur.Uint32()
			l2, _ := cur.Uint32()
			vals = append(vals, LargeCommunity{GlobalAdmin: ga, LocalData1: l1, LocalData2: l2})
		}
		return &LargeCommunities{flags: flags, Values: vals}, nil
	})
}
