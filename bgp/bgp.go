// Package bgp holds the wire primitives shared by every other package in
// this module: AFI/SAFI identifiers, autonomous system numbers, route
// distinguishers, MPLS label stacks, path identifiers, and the handful of
// byte-packing helpers every codec needs (RFC 4271 §4, RFC 4760 §3-5).
package bgp

// Version is a BGP version implemented by a speaker. The current BGP
// version number is 4; this module speaks only that version (RFC 4271 §4.2).
type Version uint8

// CurrentVersion is the only version this module negotiates.
const CurrentVersion Version = 4

// ASN is an autonomous system number. Sessions negotiate whether ASNs on
// the wire are 2 or 4 bytes (RFC 6793); this type always holds the full
// 32-bit value once decoded.
type ASN uint32

// ASTrans is the placeholder ASN (23456, "AS_TRANS") a 4-byte-ASN speaker
// uses in the 2-byte OPEN field when its real ASN doesn't fit (RFC 6793 §4.1).
const ASTrans ASN = 23456

// Identifier is a 4-byte BGP identifier: the OPEN message's Router-ID,
// and the value compared during collision resolution (RFC 4271 §4.2, §6.8).
type Identifier uint32

// Port is the well-known BGP TCP port.
const Port = 179
