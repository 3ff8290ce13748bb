package message

import "time"

// BGP does not use any TCP-based, keep-alive mechanism to determine if
// peers are reachable. Instead, KEEPALIVE messages are exchanged between
// peers often enough not to cause the Hold Timer to expire. A reasonable
// maximum time between KEEPALIVE messages is one third of the Hold Time
// interval (RFC 4271 §4.4).
const MinKeepaliveInterval = 1 * time.Second

// KeepaliveInterval returns hold/3, the scheduler's send cadence (spec.md
// §4.7 "a KEEPALIVE scheduler (send every hold-time/3)").
func KeepaliveInterval(hold time.Duration) time.Duration {
	return hold / 3
}

// A KEEPALIVE message consists of only the message header and has a
// length of 19 octets - its body is always empty.
var EmptyKeepalive = []byte{}
