package rib

import (
	"sync"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/nlri"
)

// Change is one pending or cached outbound route (spec.md §4.5 "Outgoing
// queue"). A withdrawal carries no attributes; an announcement does.
// Split, when non-zero, is the "split /N" hint: the entry's prefix is
// shorter than /Split and the generator must expand it into /Split-sized
// NLRIs before packing (spec.md §4.5 "Prefix splitting").
type Change struct {
	Family     bgp.Family
	Entry      nlri.NLRI
	Attributes *attribute.Collection
	Withdraw   bool
	Split      int
}

// AdjRIBOut is one peer's per-family queue of pending changes plus the
// cached-sent state a route-refresh replays (spec.md §4.5 "Adj-RIB-Out").
// At most one active change lives per key; queuing a change for a key
// already queued replaces it outright.
type AdjRIBOut struct {
	mu     sync.Mutex
	order  []string
	queued map[string]*Change
	sent   map[string]*Change
}

func NewAdjRIBOut() *AdjRIBOut {
	return &AdjRIBOut{
		queued: map[string]*Change{},
		sent:   map[string]*Change{},
	}
}

// Queue inserts or replaces the active change for c's key, preserving the
// key's position in insertion order the first time it is seen (spec.md
// §4.5 "The queue preserves insertion order within an attribute-group").
func (r *AdjRIBOut) Queue(c *Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key(c.Entry)
	if _, ok := r.queued[key]; !ok {
		r.order = append(r.order, key)
	}
	r.queued[key] = c
}

// QueuedChanges returns the current pending changes in insertion order.
func (r *AdjRIBOut) QueuedChanges() []*Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Change, 0, len(r.order))
	for _, key := range r.order {
		if c, ok := r.queued[key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// CachedChanges returns the last-sent state: what the peer believes we
// have advertised, used to replay a ROUTE_REFRESH request.
func (r *AdjRIBOut) CachedChanges() []*Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Change, 0, len(r.sent))
	for _, c := range r.sent {
		out = append(out, c)
	}
	return out
}

// MarkSent moves a batch of changes out of the pending queue and into the
// cached-sent state once the generator has actually packed them into
// UPDATE messages. A sent withdrawal clears the cached-sent entry instead
// of replacing it.
func (r *AdjRIBOut) MarkSent(changes []*Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		key := Key(c.Entry)
		if c.Withdraw {
			delete(r.sent, key)
		} else {
			r.sent[key] = c
		}
		if cur, ok := r.queued[key]; ok && cur == c {
			delete(r.queued, key)
		}
	}
	r.compactOrder()
}

// Requeue re-inserts every cached-sent entry for family as a fresh queued
// change, implementing a ROUTE_REFRESH response (spec.md §4.5 "Refresh").
func (r *AdjRIBOut) Requeue(family bgp.Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, c := range r.sent {
		if c.Family != family {
			continue
		}
		if _, ok := r.queued[key]; !ok {
			r.order = append(r.order, key)
		}
		r.queued[key] = c
	}
}

func (r *AdjRIBOut) compactOrder() {
	fresh := r.order[:0]
	for _, key := range r.order {
		if _, ok := r.queued[key]; ok {
			fresh = append(fresh, key)
		}
	}
	r.order = fresh
}
