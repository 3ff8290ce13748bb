package bgp

import "fmt"

// Notify is a BGP NOTIFICATION: a structured, session-resetting error
// raised by a decoder or the session driver (RFC 4271 §4.5, spec.md §7
// tier 1 "Wire errors"). It satisfies the error interface so callers can
// `errors.As` it out of a generic error return (SPEC_FULL.md §9.2).
type Notify struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

// NOTIFICATION error codes (RFC 4271 §4.5).
const (
	NotifyHeader      uint8 = 1
	NotifyOpen        uint8 = 2
	NotifyUpdate      uint8 = 3
	NotifyHoldExpired uint8 = 4
	NotifyFSM         uint8 = 5
	NotifyCease       uint8 = 6
)

// Message Header Error subcodes (RFC 4271 §6.1).
const (
	SubcodeConnectionNotSynchronized uint8 = 1
	SubcodeBadMessageLength          uint8 = 2
	SubcodeBadMessageType            uint8 = 3
)

// OPEN Message Error subcodes (RFC 4271 §6.2).
const (
	SubcodeUnsupportedVersion      uint8 = 1
	SubcodeBadPeerAS               uint8 = 2
	SubcodeBadBGPIdentifier        uint8 = 3
	SubcodeUnsupportedOptionalParm uint8 = 4
	SubcodeUnacceptableHoldTime    uint8 = 6
)

// UPDATE Message Error subcodes (RFC 4271 §6.3).
const (
	SubcodeMalformedAttributeList         uint8 = 1
	SubcodeUnrecognizedWellKnownAttribute uint8 = 2
	SubcodeMissingWellKnownAttribute      uint8 = 3
	SubcodeAttributeFlagsError            uint8 = 4
	SubcodeAttributeLengthError           uint8 = 5
	SubcodeInvalidOriginAttribute         uint8 = 6
	SubcodeInvalidNextHopAttribute        uint8 = 8
	SubcodeOptionalAttributeError         uint8 = 9
	SubcodeInvalidNetworkField            uint8 = 10
	SubcodeMalformedASPath                uint8 = 11
)

// Cease subcodes (RFC 4486 §2) this module can raise during collision
// resolution (spec.md §4.7 "Collision resolution").
const (
	SubcodeConnectionCollisionResolution uint8 = 7
)

func NewNotify(code, subcode uint8, data []byte) *Notify {
	return &Notify{Code: code, Subcode: subcode, Data: data}
}

func (n *Notify) Error() string {
	return fmt.Sprintf("NOTIFICATION(%d,%d)", n.Code, n.Subcode)
}

// WireError is raised by a primitive decoder; it carries the byte offset
// within the field being decoded and a human reason (spec.md §4.1
// "Primitive decoders fail with a structured WireError carrying an offset
// and a reason"). Higher layers translate this into either a Notify or,
// where RFC 7606 applies, a treat-as-withdraw marker.
type WireError struct {
	Offset int
	Reason string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("wire error at offset %d: %s", e.Offset, e.Reason)
}

func NewWireError(offset int, reason string) *WireError {
	return &WireError{Offset: offset, Reason: reason}
}
