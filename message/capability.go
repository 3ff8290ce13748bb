package message

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// Optional-parameter type (RFC 4271 §4.2). This module only recognizes
// Capabilities (type 2, RFC 5492); other parameter types are skipped.
const paramCapability = 2

// Capability codes (IANA "Capability Codes" registry).
const (
	CapMultiprotocol   uint8 = 1
	CapRouteRefresh    uint8 = 2
	CapGracefulRestart uint8 = 64
	CapFourByteASN     uint8 = 65
	CapAddPath         uint8 = 69
	CapExtendedMessage uint8 = 6
)

// Capabilities is the set of capabilities one side advertised in its OPEN,
// decoded into the fields the session driver needs to negotiate (spec.md
// §4.7 "on OPEN, it validates version, ASN, hold-time, and capabilities,
// builds the negotiated state").
type Capabilities struct {
	Families         []bgp.Family
	FourByteASN      bool
	ASN4             bgp.ASN
	RouteRefresh     bool
	ExtendedMessage  bool
	GracefulRestart  bool
	RestartState     bool
	RestartTime      uint16
	AddPathFamilies  map[bgp.Family]AddPathDirection
}

// AddPathDirection is the per-family, per-direction add-path setting
// negotiated independently of the send/receive direction of the peer that
// advertised it (RFC 7911 §3; spec.md §9 "Add-path asymmetry").
type AddPathDirection struct {
	Receive bool
	Send    bool
}

// EncodeCapabilities packs one OPEN's optional-parameters field.
func EncodeCapabilities(c Capabilities) []byte {
	var caps []byte
	for _, f := range c.Families {
		caps = append(caps, capTLV(CapMultiprotocol, encodeMultiprotocol(f))...)
	}
	if c.RouteRefresh {
		caps = append(caps, capTLV(CapRouteRefresh, nil)...)
	}
	if c.FourByteASN {
		caps = append(caps, capTLV(CapFourByteASN, stream.PutUint32(nil, uint32(c.ASN4)))...)
	}
	if c.ExtendedMessage {
		caps = append(caps, capTLV(CapExtendedMessage, nil)...)
	}
	if c.GracefulRestart {
		caps = append(caps, capTLV(CapGracefulRestart, encodeGracefulRestart(c))...)
	}
	for f, dir := range c.AddPathFamilies {
		caps = append(caps, capTLV(CapAddPath, encodeAddPath(f, dir))...)
	}
	if len(caps) == 0 {
		return nil
	}
	return append([]byte{paramCapability, byte(len(caps))}, caps...)
}

func capTLV(code uint8, value []byte) []byte {
	return append([]byte{code, byte(len(value))}, value...)
}

func encodeMultiprotocol(f bgp.Family) []byte {
	out := stream.PutUint16(nil, uint16(f.AFI))
	return append(out, 0, byte(f.SAFI))
}

func encodeGracefulRestart(c Capabilities) []byte {
	flags := uint16(0)
	if c.RestartState {
		flags |= 0x8000
	}
	out := stream.PutUint16(nil, flags|(c.RestartTime&0x0FFF))
	for _, f := range c.Families {
		out = stream.PutUint16(out, uint16(f.AFI))
		out = append(out, byte(f.SAFI), 0x80) // forwarding-state preserved
	}
	return out
}

func encodeAddPath(f bgp.Family, dir AddPathDirection) []byte {
	out := stream.PutUint16(nil, uint16(f.AFI))
	out = append(out, byte(f.SAFI))
	var sendReceive byte
	if dir.Receive {
		sendReceive |= 0x1
	}
	if dir.Send {
		sendReceive |= 0x2
	}
	return append(out, sendReceive)
}

// DecodeOptionalParameters walks an OPEN's optional-parameters field and
// returns the capabilities found within any Capability parameters,
// skipping parameters of other types (spec.md §4.4 "Parameters are a
// sequence of (type, length, body)").
func DecodeOptionalParameters(b []byte) (Capabilities, error) {
	var c Capabilities
	c.AddPathFamilies = map[bgp.Family]AddPathDirection{}
	cur := stream.New(b)
	for cur.Remaining() > 0 {
		paramType, err := cur.Byte()
		if err != nil {
			return c, fmt.Errorf("open: truncated parameter header")
		}
		paramLen, err := cur.Byte()
		if err != nil {
			return c, fmt.Errorf("open: truncated parameter header")
		}
		body, err := cur.Bytes(int(paramLen))
		if err != nil {
			return c, fmt.Errorf("open: truncated parameter body")
		}
		if paramType != paramCapability {
			continue
		}
		if err := decodeCapabilities(body, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

func decodeCapabilities(b []byte, c *Capabilities) error {
	cur := stream.New(b)
	for cur.Remaining() > 0 {
		code, err := cur.Byte()
		if err != nil {
			return fmt.Errorf("open: truncated capability header")
		}
		length, err := cur.Byte()
		if err != nil {
			return fmt.Errorf("open: truncated capability header")
		}
		value, err := cur.Bytes(int(length))
		if err != nil {
			return fmt.Errorf("open: truncated capability value")
		}
		switch code {
		case CapMultiprotocol:
			if len(value) != 4 {
				continue
			}
			afi := uint16(value[0])<<8 | uint16(value[1])
			c.Families = append(c.Families, bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(value[3])})
		case CapRouteRefresh:
			c.RouteRefresh = true
		case CapFourByteASN:
			if len(value) != 4 {
				continue
			}
			c.FourByteASN = true
			c.ASN4 = bgp.ASN(uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3]))
		case CapExtendedMessage:
			c.ExtendedMessage = true
		case CapGracefulRestart:
			if len(value) < 2 {
				continue
			}
			c.GracefulRestart = true
			flags := uint16(value[0])<<8 | uint16(value[1])
			c.RestartState = flags&0x8000 != 0
			c.RestartTime = flags & 0x0FFF
		case CapAddPath:
			for i := 0; i+4 <= len(value); i += 4 {
				afi := uint16(value[i])<<8 | uint16(value[i+1])
				f := bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(value[i+2])}
				sendReceive := value[i+3]
				c.AddPathFamilies[f] = AddPathDirection{
					Receive: sendReceive&0x1 != 0,
					Send:    sendReceive&0x2 != 0,
				}
			}
		}
	}
	return nil
}
