package message

import (
	"fmt"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/nlri"
	"bgpd/stream"
)

// Update is a parsed UPDATE message: IPv4-unicast withdrawals and NLRIs
// carried in the base body, plus whatever the attribute set's
// MP_REACH/MP_UNREACH attributes carry for every other family (spec.md
// §4.4 "UPDATE", §4.3 "MP_REACH / MP_UNREACH"). An UPDATE with no
// withdrawals, no attributes, and no NLRIs is the IPv4-unicast
// End-of-RIB marker.
type Update struct {
	Withdrawn   []nlri.NLRI
	Attributes  *attribute.Collection
	Reachable   []nlri.NLRI
}

// IsEndOfRIB reports whether this UPDATE is the IPv4-unicast EOR marker.
func (u *Update) IsEndOfRIB() bool {
	return len(u.Withdrawn) == 0 && u.Attributes.Len() == 0 && len(u.Reachable) == 0
}

// DecodeUpdate parses an UPDATE body. addPath reports whether Add-Path is
// negotiated for IPv4 unicast in the receive direction.
func DecodeUpdate(body []byte, parser *attribute.Parser, ctx attribute.Context, addPath bool) (*Update, error) {
	cur := stream.New(body)
	withdrawnLen, err := cur.Uint16()
	if err != nil {
		return nil, fmt.Errorf("update: truncated withdrawn-routes length")
	}
	withdrawnBytes, err := cur.Bytes(int(withdrawnLen))
	if err != nil {
		return nil, fmt.Errorf("update: truncated withdrawn routes")
	}
	attrLen, err := cur.Uint16()
	if err != nil {
		return nil, fmt.Errorf("update: truncated path-attribute length")
	}
	attrBytes, err := cur.Bytes(int(attrLen))
	if err != nil {
		return nil, fmt.Errorf("update: truncated path attributes")
	}

	var withdrawn, reachable []nlri.NLRI
	if len(withdrawnBytes) > 0 {
		withdrawn, err = nlri.DecodeAll(bgp.FamilyIPv4Unicast, withdrawnBytes, addPath)
		if err != nil {
			return nil, fmt.Errorf("update: %w", err)
		}
	}
	if cur.Remaining() > 0 {
		reachable, err = nlri.DecodeAll(bgp.FamilyIPv4Unicast, cur.Rest(), addPath)
		if err != nil {
			return nil, fmt.Errorf("update: %w", err)
		}
	}

	attrs, err := parser.Parse(attrBytes, ctx)
	if err != nil {
		return nil, err
	}

	if withdrawn, reachable, err = applyTreatAsWithdraw(attrs, withdrawn, reachable); err != nil {
		return nil, err
	}

	return &Update{Withdrawn: withdrawn, Attributes: attrs, Reachable: reachable}, nil
}

// applyTreatAsWithdraw downgrades every NLRI announced in the base body to
// a withdrawal when parsing flagged this attribute set under RFC 7606
// (spec.md §4.5 "Incoming"). Entries carried in an MP_REACH_NLRI attribute
// are not downgraded; they stay in the attribute set as announcements.
func applyTreatAsWithdraw(attrs *attribute.Collection, withdrawn, reachable []nlri.NLRI) ([]nlri.NLRI, []nlri.NLRI, error) {
	if _, marked := attrs.TreatAsWithdraw(); !marked {
		return withdrawn, reachable, nil
	}
	withdrawn = append(withdrawn, reachable...)
	return withdrawn, nil, nil
}

// EncodeUpdate packs an UPDATE body: IPv4-unicast withdrawals, then the
// canonical attribute block, then IPv4-unicast announcements.
func EncodeUpdate(u *Update, ctx attribute.Context, addPath bool) ([]byte, error) {
	withdrawnBytes, err := nlri.EncodeAll(u.Withdrawn, addPath)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	attrBytes, err := u.Attributes.Encode(ctx)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	reachableBytes, err := nlri.EncodeAll(u.Reachable, addPath)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	out := stream.PutUint16(nil, uint16(len(withdrawnBytes)))
	out = append(out, withdrawnBytes...)
	out = stream.PutUint16(out, uint16(len(attrBytes)))
	out = append(out, attrBytes...)
	return append(out, reachableBytes...), nil
}
