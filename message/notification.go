package message

import (
	"bgpd/bgp"
)

// DecodeNotification parses a NOTIFICATION message body (RFC 4271 §4.5):
// code, subcode, and optional diagnostic data.
func DecodeNotification(body []byte) (*bgp.Notify, error) {
	if len(body) < 2 {
		return nil, bgp.NewNotify(bgp.NotifyHeader, bgp.SubcodeBadMessageLength, nil)
	}
	return &bgp.Notify{
		Code:    body[0],
		Subcode: body[1],
		Data:    append([]byte(nil), body[2:]...),
	}, nil
}

// EncodeNotification packs a NOTIFICATION message body.
func EncodeNotification(n *bgp.Notify) []byte {
	out := []byte{n.Code, n.Subcode}
	return append(out, n.Data...)
}
