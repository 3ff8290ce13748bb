// Package nlri implements the per-address-family NLRI codec: decoding a
// running byte slice into typed prefixes/routes until it is exhausted, and
// packing them back into wire form (spec.md §4.3).
//
// Grounded on the teacher's radix/radix.go prefix-bytes handling and
// bgp/update.go's NLRI walk, generalized from IPv4-unicast-only into a
// per-family registry the way the attribute package generalizes its
// per-code behavior table.
package nlri

import (
	"fmt"

	"bgpd/bgp"
)

// NLRI is one decoded reachability or unreachability entry.
type NLRI interface {
	Family() bgp.Family
	Encode(addPath bool) ([]byte, error)
}

// decodeFunc reads one NLRI entry off the front of b, returning it and the unconsumed
// remainder of b.
type decodeFunc func(b []byte, addPath bool) (NLRI, []byte, error)

var decoders = map[bgp.Family]decodeFunc{}

func register(f bgp.Family, fn decodeFunc) {
	decoders[f] = fn
}

// DecodeAll consumes b entirely, returning every NLRI entry for family,
// honoring whether add-path is negotiated for this family/direction
// (spec.md §4.3, §9 "Add-path asymmetry").
func DecodeAll(family bgp.Family, b []byte, addPath bool) ([]NLRI, error) {
	decode, ok := decoders[family]
	if !ok {
		return nil, fmt.Errorf("nlri: no decoder registered for %s", family)
	}
	var out []NLRI
	for len(b) > 0 {
		n, rest, err := decode(b, addPath)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		b = rest
	}
	return out, nil
}

// EncodeAll packs a sequence of same-family NLRIs back-to-back.
func EncodeAll(entries []NLRI, addPath bool) ([]byte, error) {
	var out []byte
	for _, n := range entries {
		b, err := n.Encode(addPath)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// PathID optionally prefixes an NLRI under Add-Path (RFC 7911 §3).
type PathID struct {
	ID    bgp.PathID
	HasID bool
}
