package rib

import (
	"sync"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/nlri"
)

// Route is one entry mirrored from a peer's announced state.
type Route struct {
	Family     bgp.Family
	Entry      nlri.NLRI
	Attributes *attribute.Collection
}

// AdjRIBIn mirrors the neighbor's announced state, keyed identically to
// AdjRIBOut (spec.md §4.5 "Adj-RIB-In"). It is populated from received
// UPDATEs and consulted read-only by the helper-channel API.
type AdjRIBIn struct {
	mu     sync.Mutex
	routes map[string]*Route
	index  *PrefixIndex
}

func NewAdjRIBIn() *AdjRIBIn {
	return &AdjRIBIn{
		routes: map[string]*Route{},
		index:  NewPrefixIndex(),
	}
}

// Apply folds one UPDATE's worth of withdrawn and reachable NLRIs into the
// table, sharing the single parsed attribute set across every reachable
// entry (spec.md §4.5 "Incoming").
func (r *AdjRIBIn) Apply(family bgp.Family, withdrawn, reachable []nlri.NLRI, attrs *attribute.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range withdrawn {
		key := Key(w)
		delete(r.routes, key)
		r.index.Delete(key)
	}
	for _, a := range reachable {
		key := Key(a)
		r.routes[key] = &Route{Family: family, Entry: a, Attributes: attrs}
		r.index.Insert(key, a)
	}
}

func (r *AdjRIBIn) Get(key string) (*Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[key]
	return route, ok
}

// All returns every route currently held, in no particular order.
func (r *AdjRIBIn) All() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

// Covering returns every route whose key was indexed under a prefix that
// covers, or is covered by, query - the "show adj-rib in <prefix>" helper
// query (spec.md §6.2).
func (r *AdjRIBIn) Covering(query nlri.NLRI) []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Route
	for _, key := range r.index.Covering(query) {
		if route, ok := r.routes[key]; ok {
			out = append(out, route)
		}
	}
	return out
}
