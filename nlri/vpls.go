package nlri

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// VPLS is an RFC 4761 VPLS NLRI: a 2-byte length field followed by an
// 8-byte RD, 2-byte VE-ID, 2-byte VE-block-offset, 2-byte VE-block-size,
// and a 3-byte label base with the bottom-of-stack bit set (spec.md §4.3
// "VPLS", §8 scenario 5).
type VPLS struct {
	RD          bgp.RD
	VEID        uint16
	BlockOffset uint16
	BlockSize   uint16
	LabelBase   uint32
}

func (n *VPLS) Family() bgp.Family { return bgp.Family{AFI: bgp.AFIL2VPN, SAFI: bgp.SAFIVPLS} }

func (n *VPLS) Encode(addPath bool) ([]byte, error) {
	body := make([]byte, 0, 17)
	body = append(body, n.RD[:]...)
	body = stream.PutUint16(body, n.VEID)
	body = stream.PutUint16(body, n.BlockOffset)
	body = stream.PutUint16(body, n.BlockSize)
	labelWord := n.LabelBase<<4 | 0x1
	body = append(body, byte(labelWord>>16), byte(labelWord>>8), byte(labelWord))

	out := stream.PutUint16(nil, uint16(len(body)))
	return append(out, body...), nil
}

func decodeVPLS(b []byte, addPath bool) (NLRI, []byte, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("vpls: truncated length")
	}
	cur := stream.New(b[:2])
	length, _ := cur.Uint16()
	b = b[2:]
	if len(b) < int(length) {
		return nil, nil, fmt.Errorf("vpls: truncated body")
	}
	body := b[:length]
	rest := b[length:]
	if len(body) != 17 {
		return nil, nil, fmt.Errorf("vpls: want 17-byte body, got %d", len(body))
	}
	rd, err := bgp.ParseRD(body[:8])
	if err != nil {
		return nil, nil, err
	}
	c := stream.New(body[8:])
	veID, _ := c.Uint16()
	blockOffset, _ := c.Uint16()
	blockSize, _ := c.Uint16()
	labelBytes, _ := c.Bytes(3)
	labelWord := uint32(labelBytes[0])<<16 | uint32(labelBytes[1])<<8 | uint32(labelBytes[2])

	n := &VPLS{
		RD:          rd,
		VEID:        veID,
		BlockOffset: blockOffset,
		BlockSize:   blockSize,
		LabelBase:   labelWord >> 4,
	}
	return n, rest, nil
}

func init() {
	register(bgp.Family{AFI: bgp.AFIL2VPN, SAFI: bgp.SAFIVPLS}, decodeVPLS)
}
