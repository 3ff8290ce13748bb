package rib

import (
	"net/netip"

	"bgpd/nlri"
)

// PrefixIndex is a longest-match trie over Adj-RIB-In, adapted from the
// teacher's kernel-FIB Radix trie: same edges-of-a-node shape and the same
// "insert under the most specific covering edge, then pull any edges the
// new one now covers underneath it" algorithm, but the payload is a RIB
// key instead of a next hop, and the caller is a RIB lookup
// ("show adj-rib in <prefix>") instead of a forwarding-table install.
// Families with no natural prefix (FlowSpec, EVPN, VPLS, ...) fall back to
// a flat bucket searched linearly; that bucket is always small relative to
// a scaled Inet/VPN table.
type PrefixIndex struct {
	root *pnode
	flat map[string]struct{}
}

type pedge struct {
	target *pnode
	prefix netip.Prefix
	key    string
}

type pnode struct {
	edges []*pedge
}

func NewPrefixIndex() *PrefixIndex {
	return &PrefixIndex{root: &pnode{}, flat: map[string]struct{}{}}
}

// Insert indexes key under the prefix carried by n, if any.
func (t *PrefixIndex) Insert(key string, n nlri.NLRI) {
	prefix, ok := prefixOf(n)
	if !ok {
		t.flat[key] = struct{}{}
		return
	}
	best := t.lookup(t.root, prefix)
	var parent *pnode
	if best == nil {
		parent = t.root
	} else if best.prefix == prefix {
		best.key = key
		return
	} else {
		parent = best.target
	}
	fresh := &pedge{target: &pnode{}, prefix: prefix, key: key}
	parent.edges = append(parent.edges, fresh)
	kept := parent.edges[:0]
	for _, e := range parent.edges {
		if e != fresh && contains(prefix, e.prefix) {
			fresh.target.edges = append(fresh.target.edges, e)
			continue
		}
		kept = append(kept, e)
	}
	parent.edges = kept
}

// Delete removes key from wherever it is indexed.
func (t *PrefixIndex) Delete(key string) {
	delete(t.flat, key)
	deleteEdge(t.root, key)
}

func deleteEdge(n *pnode, key string) bool {
	for i, e := range n.edges {
		if e.key == key {
			rest := append(n.edges[:i:i], n.edges[i+1:]...)
			n.edges = append(rest, e.target.edges...)
			return true
		}
		if deleteEdge(e.target, key) {
			return true
		}
	}
	return false
}

// Covering returns every indexed key whose prefix covers, or is covered
// by, query's own prefix. Entries with no natural prefix are returned
// whenever query has none either.
func (t *PrefixIndex) Covering(query nlri.NLRI) []string {
	prefix, ok := prefixOf(query)
	if !ok {
		out := make([]string, 0, len(t.flat))
		for key := range t.flat {
			out = append(out, key)
		}
		return out
	}
	var out []string
	collectOverlapping(t.root, prefix, &out)
	return out
}

func collectOverlapping(n *pnode, prefix netip.Prefix, out *[]string) {
	for _, e := range n.edges {
		if e.prefix.Overlaps(prefix) {
			*out = append(*out, e.key)
		}
		collectOverlapping(e.target, prefix, out)
	}
}

func (t *PrefixIndex) lookup(n *pnode, prefix netip.Prefix) *pedge {
	var best *pedge
	for _, e := range n.edges {
		if e.prefix == prefix || contains(e.prefix, prefix) {
			best = e
			if next := t.lookup(e.target, prefix); next != nil {
				return next
			}
			return best
		}
	}
	return best
}

func contains(outer, inner netip.Prefix) bool {
	if outer == inner {
		return false
	}
	return outer.Contains(inner.Addr()) && outer.Bits() <= inner.Bits()
}

// prefixOf extracts the destination prefix from the NLRI types that carry
// one plainly; FlowSpec/EVPN/VPLS/Generic have no single covering prefix
// in this model and fall back to the flat bucket.
func prefixOf(n nlri.NLRI) (netip.Prefix, bool) {
	switch v := n.(type) {
	case *nlri.Inet:
		return v.Prefix, true
	case *nlri.Labeled:
		return v.Prefix, true
	case *nlri.VPN:
		return v.Prefix, true
	default:
		return netip.Prefix{}, false
	}
}
