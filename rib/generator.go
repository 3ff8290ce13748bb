package rib

import (
	"fmt"
	"net/netip"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/message"
	"bgpd/nlri"
)

// perMessageOverhead is a conservative estimate of the non-NLRI bytes a
// packed UPDATE carries (19-byte header, 2+2 length fields, and for MP
// families the MP_REACH attribute header, AFI/SAFI, next-hop length,
// next hop and reserved byte). The generator uses it to
// decide when a message's NLRI budget is exhausted; it is deliberately
// generous rather than byte-exact; EncodeUpdate is the source of truth for
// the wire length.
const perMessageOverhead = 64

// Options configures one call to Generate.
type Options struct {
	Families   []bgp.Family // negotiated order; also the EOR emission order
	MaxMessage int
	Context    attribute.Context
	AddPath    map[bgp.Family]bool
	EmitEOR    bool
}

// Generator packs an AdjRIBOut's queued changes into UPDATE messages
// (spec.md §4.5 "Update generation").
type Generator struct{}

// Generate drains out's queued changes into a sequence of UPDATE messages
// and marks them sent. Errors for individual rejected changes (an NLRI
// that doesn't fit even alone, and can't be split) are collected and
// returned alongside whatever did get generated.
func (Generator) Generate(out *AdjRIBOut, opts Options) ([]*message.Update, []error) {
	changes := out.QueuedChanges()
	var updates []*message.Update
	var errs []error
	var sent []*Change

	byFamily := map[bgp.Family][]*Change{}
	for _, c := range changes {
		byFamily[c.Family] = append(byFamily[c.Family], expandSplit(c, &errs)...)
	}

	for _, family := range opts.Families {
		fc, ok := byFamily[family]
		if !ok {
			continue
		}
		addPath := opts.AddPath[family]
		budget := opts.MaxMessage - perMessageOverhead

		var withdraws, announces []*Change
		for _, c := range fc {
			if c.Withdraw {
				withdraws = append(withdraws, c)
			} else {
				announces = append(announces, c)
			}
		}

		// Withdrawals before announcements for the same family, per
		// RFC 4271 §9.1.4 intent.
		msgs, packed, rejected := packWithdrawals(family, withdraws, addPath, budget)
		updates = append(updates, msgs...)
		errs = append(errs, rejected...)
		sent = append(sent, packed...)

		groups := groupByAttributes(announces, opts.Context)
		for _, group := range groups {
			msgs, packed, rejected := packAnnouncements(family, group.changes, group.attrs, addPath, budget, opts.Context)
			updates = append(updates, msgs...)
			errs = append(errs, rejected...)
			sent = append(sent, packed...)
		}
	}

	out.MarkSent(sent)

	if opts.EmitEOR {
		for _, family := range opts.Families {
			updates = append(updates, endOfRIB(family))
		}
	}

	return updates, errs
}

// Refresh re-queues the cached-sent state for family, bracketed by
// begin/end markers when enhanced is set (spec.md §4.5 "Refresh").
func (Generator) Refresh(out *AdjRIBOut, family bgp.Family, opts Options, enhanced bool) ([]*message.Update, []error) {
	out.Requeue(family)
	singleFamily := opts
	singleFamily.Families = []bgp.Family{family}
	singleFamily.EmitEOR = false
	updates, errs := Generator{}.Generate(out, singleFamily)
	if !enhanced {
		return updates, errs
	}
	bracketed := make([]*message.Update, 0, len(updates)+2)
	bracketed = append(bracketed, endOfRIB(family))
	bracketed = append(bracketed, updates...)
	bracketed = append(bracketed, endOfRIB(family))
	return bracketed, errs
}

type attrGroup struct {
	attrs   *attribute.Collection
	changes []*Change
}

// groupByAttributes buckets announcements sharing an identical attribute
// set (by canonical encoded bytes, since encoding is deterministic for a
// fixed Context) so each bucket becomes one attribute blob shared by many
// NLRIs (spec.md §4.5 step 3/4).
func groupByAttributes(changes []*Change, ctx attribute.Context) []attrGroup {
	order := []string{}
	buckets := map[string]*attrGroup{}
	for _, c := range changes {
		raw, err := c.Attributes.Encode(ctx)
		if err != nil {
			continue
		}
		key := string(raw)
		g, ok := buckets[key]
		if !ok {
			g = &attrGroup{attrs: c.Attributes}
			buckets[key] = g
			order = append(order, key)
		}
		g.changes = append(g.changes, c)
	}
	out := make([]attrGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}

func packWithdrawals(family bgp.Family, changes []*Change, addPath bool, budget int) ([]*message.Update, []*Change, []error) {
	if len(changes) == 0 {
		return nil, nil, nil
	}
	entries := make([]nlri.NLRI, len(changes))
	for i, c := range changes {
		entries[i] = c.Entry
	}
	batches, packedIdx, errs := chunkByBudget(entries, addPath, budget)
	out := make([]*message.Update, 0, len(batches))
	for _, batch := range batches {
		out = append(out, withdrawUpdate(family, batch))
	}
	packed := make([]*Change, 0, len(packedIdx))
	for _, i := range packedIdx {
		packed = append(packed, changes[i])
	}
	return out, packed, errs
}

func packAnnouncements(family bgp.Family, changes []*Change, attrs *attribute.Collection, addPath bool, budget int, ctx attribute.Context) ([]*message.Update, []*Change, []error) {
	if len(changes) == 0 {
		return nil, nil, nil
	}
	entries := make([]nlri.NLRI, len(changes))
	for i, c := range changes {
		entries[i] = c.Entry
	}
	attrBytes, _ := attrs.Encode(ctx)
	batches, packedIdx, errs := chunkByBudget(entries, addPath, budget-len(attrBytes))
	out := make([]*message.Update, 0, len(batches))
	for _, batch := range batches {
		out = append(out, announceUpdate(family, batch, attrs))
	}
	packed := make([]*Change, 0, len(packedIdx))
	for _, i := range packedIdx {
		packed = append(packed, changes[i])
	}
	return out, packed, errs
}

// chunkByBudget packs entries into as few batches as possible, each
// staying at or under budget bytes of encoded NLRI. An entry that alone
// exceeds budget is reported as an error and dropped; its index is left
// out of packedIdx so the caller knows not to mark it sent.
func chunkByBudget(entries []nlri.NLRI, addPath bool, budget int) (batches [][]nlri.NLRI, packedIdx []int, errs []error) {
	if budget < 0 {
		budget = 0
	}
	var current []nlri.NLRI
	var currentIdx []int
	used := 0
	for i, e := range entries {
		b, err := e.Encode(addPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("rib: encode %s: %w", e.Family(), err))
			continue
		}
		if len(b) > budget {
			errs = append(errs, fmt.Errorf("rib: entry for %s (%d bytes) exceeds message budget %d and cannot be split", e.Family(), len(b), budget))
			continue
		}
		if used+len(b) > budget && len(current) > 0 {
			batches = append(batches, current)
			packedIdx = append(packedIdx, currentIdx...)
			current = nil
			currentIdx = nil
			used = 0
		}
		current = append(current, e)
		currentIdx = append(currentIdx, i)
		used += len(b)
	}
	if len(current) > 0 {
		batches = append(batches, current)
		packedIdx = append(packedIdx, currentIdx...)
	}
	return batches, packedIdx, errs
}

func withdrawUpdate(family bgp.Family, batch []nlri.NLRI) *message.Update {
	if family == bgp.FamilyIPv4Unicast {
		return &message.Update{Withdrawn: batch, Attributes: attribute.NewCollection()}
	}
	attrs := attribute.NewCollection()
	attrs.Set(&attribute.MPUnreach{Family: family, Entries: batch})
	return &message.Update{Attributes: attrs}
}

func announceUpdate(family bgp.Family, batch []nlri.NLRI, attrs *attribute.Collection) *message.Update {
	if family == bgp.FamilyIPv4Unicast {
		return &message.Update{Reachable: batch, Attributes: attrs}
	}
	withAttrs := attribute.NewCollection()
	for _, code := range attrs.Codes() {
		if code == attribute.CodeMPReachNLRI || code == attribute.CodeMPUnreachNLRI {
			continue
		}
		a, _ := attrs.Get(code)
		withAttrs.Set(a)
	}
	nextHop := mpNextHop(family, attrs)
	withAttrs.Set(&attribute.MPReach{Family: family, NextHop: nextHop, Entries: batch})
	return &message.Update{Attributes: withAttrs}
}

// mpNextHop pulls a plain NEXT_HOP attribute's address, if the caller left
// one on the collection as a convenience, and renders it family-sized.
func mpNextHop(family bgp.Family, attrs *attribute.Collection) []byte {
	a, ok := attrs.Get(attribute.CodeNextHop)
	if !ok {
		return nil
	}
	nh, ok := a.(*attribute.NextHopAttr)
	if !ok || !nh.Addr.IsValid() {
		return nil
	}
	if family.AFI == bgp.AFIIPv6 {
		b16 := nh.Addr.As16()
		return b16[:]
	}
	b4 := nh.Addr.As4()
	return b4[:]
}

func endOfRIB(family bgp.Family) *message.Update {
	if family == bgp.FamilyIPv4Unicast {
		return &message.Update{Attributes: attribute.NewCollection()}
	}
	attrs := attribute.NewCollection()
	attrs.Set(&attribute.MPUnreach{Family: family})
	return &message.Update{Attributes: attrs}
}

// expandSplit turns a change carrying a "split /N" hint into one change
// per /N-sized sub-prefix (spec.md §4.5 "Prefix splitting"). Only plain
// Inet entries support splitting; anything else with a split hint is
// rejected rather than silently ignored.
func expandSplit(c *Change, errs *[]error) []*Change {
	if c.Split == 0 {
		return []*Change{c}
	}
	inet, ok := c.Entry.(*nlri.Inet)
	if !ok {
		*errs = append(*errs, fmt.Errorf("rib: split hint on non-splittable NLRI type for %s", c.Entry.Family()))
		return nil
	}
	if c.Split <= inet.Prefix.Bits() {
		return []*Change{c}
	}
	var out []*Change
	for _, p := range subnets(inet.Prefix, c.Split) {
		clone := nlri.NewInet(inet.Family(), p, inet.PathID, inet.HasID)
		out = append(out, &Change{Family: c.Family, Entry: clone, Attributes: c.Attributes, Withdraw: c.Withdraw})
	}
	return out
}

// subnets enumerates every /to-sized prefix contained in p.
func subnets(p netip.Prefix, to int) []netip.Prefix {
	if to <= p.Bits() {
		return []netip.Prefix{p}
	}
	count := 1 << uint(to-p.Bits())
	out := make([]netip.Prefix, 0, count)
	base := p.Addr()
	step := uint(p.Addr().BitLen() - to)
	for i := 0; i < count; i++ {
		addr := addAtBit(base, i, step, p.Addr().BitLen())
		out = append(out, netip.PrefixFrom(addr, to))
	}
	return out
}

// addAtBit returns base with i ORed in starting at bit position `step`
// (counted from the bottom of the address), used to enumerate sibling
// sub-prefixes.
func addAtBit(base netip.Addr, i int, step uint, bitLen int) netip.Addr {
	raw := base.AsSlice()
	shifted := uint64(i) << step
	for bit := 0; bit < 64 && int(step)+bit < bitLen; bit++ {
		if shifted&(1<<uint(bit)) == 0 {
			continue
		}
		byteIdx := len(raw) - 1 - bit/8
		if byteIdx < 0 {
			continue
		}
		raw[byteIdx] |= 1 << uint(bit%8)
	}
	addr, _ := netip.AddrFromSlice(raw)
	if base.Is4() {
		addr = addr.Unmap()
	}
	return addr
}
