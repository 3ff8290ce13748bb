// Package message implements BGP message framing and the five message
// bodies: OPEN, UPDATE, NOTIFICATION, KEEPALIVE, ROUTE-REFRESH (spec.md
// §4.4).
//
// Grounded on the teacher's message/open.go, message/notification.go, and
// message/keepalive.go field layouts and doc-comment style (kept RFC
// section references inline where the teacher had them), generalized from
// its bytes.Buffer-based reader into the stream.Cursor every other codec
// package in this module uses.
package message

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// Type is the 1-byte message-type field (RFC 4271 §4.1).
type Type uint8

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeRouteRefresh Type = 5
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeUpdate:
		return "UPDATE"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// HeaderLength is the fixed 19-byte marker+length+type header.
const HeaderLength = 19

// StandardMaxLength is the message-length ceiling before EXTENDED_MESSAGE
// is negotiated (spec.md §4.4).
const StandardMaxLength = 4096

// ExtendedMaxLength is the ceiling once both sides advertise
// EXTENDED_MESSAGE (RFC 8654).
const ExtendedMaxLength = 65535

// MinMessageLength is the smallest legal total message length (header
// only, e.g. KEEPALIVE).
const MinMessageLength = HeaderLength

// marker is the mandatory all-ones 16-byte header marker (RFC 4271 §4.1 -
// BGP does not use an authentication mechanism over the marker itself).
var marker = [16]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

// Header is a parsed, validated message header.
type Header struct {
	Length uint16
	Type   Type
}

// ParseHeader validates the marker and length bounds and returns the
// header plus how many body bytes follow (spec.md §4.4 "On receive, a
// length < 19 or > negotiated-max triggers Notification(1,2). A marker
// not equal to all-ones triggers Notification(1,1)").
func ParseHeader(b []byte, maxLength int) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, fmt.Errorf("message: short header, %d bytes", len(b))
	}
	if [16]byte(b[:16]) != marker {
		return Header{}, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeConnectionNotSynchronized, nil)
	}
	cur := stream.New(b[16:19])
	length, _ := cur.Uint16()
	typeByte, _ := cur.Byte()

	if int(length) < HeaderLength || int(length) > maxLength {
		return Header{}, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeBadMessageLength, b[16:18])
	}
	return Header{Length: length, Type: Type(typeByte)}, nil
}

// PutHeader packs the marker, total length (header + len(body)), and type.
func PutHeader(bodyLen int, t Type) []byte {
	out := make([]byte, 0, HeaderLength)
	out = append(out, marker[:]...)
	out = stream.PutUint16(out, uint16(HeaderLength+bodyLen))
	return append(out, byte(t))
}

// Frame packs a complete message: header plus body.
func Frame(t Type, body []byte) []byte {
	return append(PutHeader(len(body), t), body...)
}
