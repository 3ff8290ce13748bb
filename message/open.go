package message

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// After a TCP connection is established, the first message sent by each
// side is an OPEN message.  If the OPEN message is acceptable, a
// KEEPALIVE message confirming the OPEN is sent back (RFC 4271 §4.2).
type Open struct {
	// Version indicates the protocol version number of the message. The
	// current BGP version number is 4.
	Version bgp.Version
	// ASN indicates the Autonomous System number of the sender, or the
	// ASN-transition placeholder bgp.ASTrans when the real ASN needs
	// 4-byte ASN capability negotiation to carry (RFC 6793 §4.1).
	ASN uint16
	// HoldTime is the number of seconds the sender proposes for the
	// value of the Hold Timer.
	HoldTime uint16
	// Identifier is the BGP Identifier of the sender.
	Identifier bgp.Identifier
	// Capabilities carries everything decoded out of the optional
	// parameters field (spec.md §4.4 "OPEN").
	Capabilities Capabilities
}

// MinOpenLength is the minimum legal OPEN body length: the 10 fixed bytes
// plus a zero-length optional-parameters field.
const MinOpenLength = 10

// DecodeOpen parses an OPEN message body.
func DecodeOpen(body []byte) (*Open, error) {
	if len(body) < MinOpenLength {
		return nil, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeBadMessageLength, nil)
	}
	cur := stream.New(body)
	versionByte, _ := cur.Byte()
	asn, _ := cur.Uint16()
	holdTime, _ := cur.Uint16()
	id, _ := cur.Uint32()
	optLen, err := cur.Byte()
	if err != nil {
		return nil, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeBadMessageLength, nil)
	}
	optBody, err := cur.Bytes(int(optLen))
	if err != nil {
		return nil, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeBadMessageLength, nil)
	}

	o := &Open{
		Version:    bgp.Version(versionByte),
		ASN:        asn,
		HoldTime:   holdTime,
		Identifier: bgp.Identifier(id),
	}
	if o.Version != bgp.CurrentVersion {
		return nil, bgp.NewNotify(bgp.NotifyOpen, bgp.SubcodeUnsupportedVersion, []byte{byte(bgp.CurrentVersion)})
	}
	caps, err := DecodeOptionalParameters(optBody)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	o.Capabilities = caps
	return o, nil
}

// Encode packs this OPEN's body.
func (o *Open) Encode() []byte {
	out := []byte{byte(o.Version)}
	out = stream.PutUint16(out, o.ASN)
	out = stream.PutUint16(out, o.HoldTime)
	out = stream.PutUint32(out, uint32(o.Identifier))
	params := EncodeCapabilities(o.Capabilities)
	out = append(out, byte(len(params)))
	return append(out, params...)
}

// ValidateHoldTime enforces RFC 4271 §4.2: a Hold Time must be either zero
// or at least 3 seconds.
func ValidateHoldTime(h uint16) bool {
	return h == 0 || h >= 3
}
