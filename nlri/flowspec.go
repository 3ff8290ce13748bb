package nlri

import (
	"fmt"
	"net/netip"
	"sort"

	"bgpd/bgp"
)

// FlowSpec component types (RFC 5575 §4, RFC 8955).
const (
	FlowDestinationPrefix uint8 = 1
	FlowSourcePrefix      uint8 = 2
	FlowIPProtocol        uint8 = 3
	FlowPort              uint8 = 4
	FlowDestinationPort   uint8 = 5
	FlowSourcePort        uint8 = 6
	FlowICMPType          uint8 = 7
	FlowICMPCode          uint8 = 8
	FlowTCPFlags          uint8 = 9
	FlowPacketLength      uint8 = 10
	FlowDSCP              uint8 = 11
	FlowFragment          uint8 = 12
)

// Numeric operator bit flags (RFC 5575 §4.2.1).
const (
	opEOL = 0x80
	opAND = 0x40
	opLT  = 0x04
	opGT  = 0x02
	opEQ  = 0x01
)

// NumericOp is one value comparison within a numeric FlowSpec component.
type NumericOp struct {
	And   bool // AND with the previous op (false = OR)
	Lt    bool
	Gt    bool
	Eq    bool
	Value uint64
}

func valueLen(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func lenBits(n int) byte {
	switch n {
	case 1:
		return 0x00
	case 2:
		return 0x10
	case 4:
		return 0x20
	default:
		return 0x30
	}
}

// Component is one typed FlowSpec rule, ordered by ascending type within an
// NLRI (spec.md §4.3 "Decoders must enforce ordering").
type Component interface {
	Type() uint8
	encode() []byte
}

// PrefixComponent matches a destination or source prefix.
type PrefixComponent struct {
	CompType uint8
	Prefix   netip.Prefix
}

func (c *PrefixComponent) Type() uint8 { return c.CompType }
func (c *PrefixComponent) encode() []byte {
	return append([]byte{c.CompType}, bgp.PutCIDR(c.Prefix)...)
}

// NumericComponent matches a series of operator/value pairs against a
// protocol field (port, protocol number, TCP flags, etc).
type NumericComponent struct {
	CompType uint8
	Ops      []NumericOp
}

func (c *NumericComponent) Type() uint8 { return c.CompType }
func (c *NumericComponent) encode() []byte {
	out := []byte{c.CompType}
	for i, op := range c.Ops {
		n := valueLen(op.Value)
		b := lenBits(n)
		if op.And {
			b |= opAND
		}
		if op.Lt {
			b |= opLT
		}
		if op.Gt {
			b |= opGT
		}
		if op.Eq {
			b |= opEQ
		}
		if i == len(c.Ops)-1 {
			b |= opEOL
		}
		out = append(out, b)
		v := op.Value
		vb := make([]byte, n)
		for j := n - 1; j >= 0; j-- {
			vb[j] = byte(v)
			v >>= 8
		}
		out = append(out, vb...)
	}
	return out
}

func decodeNumeric(compType uint8, b []byte) (*NumericComponent, []byte, error) {
	c := &NumericComponent{CompType: compType}
	for {
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("flowspec: truncated numeric op")
		}
		opByte := b[0]
		b = b[1:]
		n := 1 << ((opByte & 0x30) >> 4)
		if len(b) < n {
			return nil, nil, fmt.Errorf("flowspec: truncated numeric value")
		}
		var v uint64
		for i := 0; i < n; i++ {
			v = v<<8 | uint64(b[i])
		}
		b = b[n:]
		c.Ops = append(c.Ops, NumericOp{
			And: opByte&opAND != 0,
			Lt:  opByte&opLT != 0,
			Gt:  opByte&opGT != 0,
			Eq:  opByte&opEQ != 0,
			Value: v,
		})
		if opByte&opEOL != 0 {
			break
		}
	}
	return c, b, nil
}

// FlowSpec is one FlowSpec NLRI: a length-prefixed, ascending-type-ordered
// sequence of match components (spec.md §4.3, §8 boundary behaviors).
type FlowSpec struct {
	family     bgp.Family
	Components []Component
}

func (n *FlowSpec) Family() bgp.Family { return n.family }

func (n *FlowSpec) Encode(addPath bool) ([]byte, error) {
	sorted := append([]Component(nil), n.Components...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Type() < sorted[j].Type() })
	var body []byte
	for _, c := range sorted {
		body = append(body, c.encode()...)
	}
	var out []byte
	if len(body) >= 240 {
		out = append(out, byte(0xF0|((len(body)>>8)&0x0F)), byte(len(body)))
	} else {
		out = append(out, byte(len(body)))
	}
	return append(out, body...), nil
}

func decodeFlowSpec(family bgp.Family) decodeFunc {
	return func(b []byte, addPath bool) (NLRI, []byte, error) {
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("flowspec: truncated length")
		}
		var length int
		if b[0]>>4 == 0xF {
			if len(b) < 2 {
				return nil, nil, fmt.Errorf("flowspec: truncated 2-byte length")
			}
			length = int(b[0]&0x0F)<<8 | int(b[1])
			b = b[2:]
		} else {
			length = int(b[0])
			b = b[1:]
		}
		if len(b) < length {
			return nil, nil, fmt.Errorf("flowspec: truncated rules body")
		}
		body := b[:length]
		rest := b[length:]

		var comps []Component
		var lastType uint8
		for len(body) > 0 {
			compType := body[0]
			if len(comps) > 0 && compType <= lastType {
				return nil, nil, fmt.Errorf("flowspec: component type %d out of order", compType)
			}
			lastType = compType
			body = body[1:]
			switch compType {
			case FlowDestinationPrefix, FlowSourcePrefix:
				bits := 32
				if family.AFI == bgp.AFIIPv6 {
					bits = 128
				}
				p, r, err := bgp.ParseCIDR(body, bits)
				if err != nil {
					return nil, nil, err
				}
				comps = append(comps, &PrefixComponent{CompType: compType, Prefix: p})
				body = r
			default:
				c, r, err := decodeNumeric(compType, body)
				if err != nil {
					return nil, nil, err
				}
				comps = append(comps, c)
				body = r
			}
		}
		return &FlowSpec{family: family, Components: comps}, rest, nil
	}
}

func init() {
	register(bgp.FamilyIPv4FlowSpec, decodeFlowSpec(bgp.FamilyIPv4FlowSpec))
}
