package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/message"
	"bgpd/nlri"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

func withOrigin(t *testing.T) *attribute.Collection {
	t.Helper()
	c := attribute.NewCollection()
	c.Set(&attribute.OriginAttr{Value: attribute.OriginIGP})
	return c
}

func TestAdjRIBOutQueueSupersedesSameKey(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.0.0.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Attributes: withOrigin(t)})
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Withdraw: true})

	changes := out.QueuedChanges()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Withdraw)
}

func TestAdjRIBOutWithdrawNotPreviouslySentStillQueues(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.0.1.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Withdraw: true})
	assert.Len(t, out.QueuedChanges(), 1)
}

func TestGeneratorWithdrawBeforeAnnounce(t *testing.T) {
	out := NewAdjRIBOut()
	w := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.0.2.0/24"), 0, false)
	a := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.0.3.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: w, Withdraw: true})
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: a, Attributes: withOrigin(t)})

	updates, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast},
		MaxMessage: 4096,
	})
	require.Empty(t, errs)
	require.Len(t, updates, 2)
	assert.NotEmpty(t, updates[0].Withdrawn)
	assert.Empty(t, updates[0].Reachable)
	assert.NotEmpty(t, updates[1].Reachable)
}

func TestGeneratorGroupsByAttributeSet(t *testing.T) {
	out := NewAdjRIBOut()
	shared := withOrigin(t)
	a1 := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.1.0.0/24"), 0, false)
	a2 := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.1.1.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: a1, Attributes: shared})
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: a2, Attributes: shared})

	updates, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast},
		MaxMessage: 4096,
	})
	require.Empty(t, errs)
	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Reachable, 2)
}

func TestGeneratorMarksSentAndCaches(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.2.0.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Attributes: withOrigin(t)})

	_, errs := Generator{}.Generate(out, Options{Families: []bgp.Family{bgp.FamilyIPv4Unicast}, MaxMessage: 4096})
	require.Empty(t, errs)
	assert.Empty(t, out.QueuedChanges())
	assert.Len(t, out.CachedChanges(), 1)
}

func TestGeneratorRefreshReplaysSentState(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.3.0.0/24"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Attributes: withOrigin(t)})
	Generator{}.Generate(out, Options{Families: []bgp.Family{bgp.FamilyIPv4Unicast}, MaxMessage: 4096})

	updates, errs := Generator{}.Refresh(out, bgp.FamilyIPv4Unicast, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast},
		MaxMessage: 4096,
	}, true)
	require.Empty(t, errs)
	require.Len(t, updates, 3) // begin, the replayed announcement, end
	assert.True(t, updates[0].IsEndOfRIB())
	assert.True(t, updates[2].IsEndOfRIB())
}

func TestGeneratorEmitsEORInFamilyOrder(t *testing.T) {
	out := NewAdjRIBOut()
	updates, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyIPv6Unicast},
		MaxMessage: 4096,
		EmitEOR:    true,
	})
	require.Empty(t, errs)
	require.Len(t, updates, 2)
	assert.True(t, updates[0].IsEndOfRIB())
	a, ok := updates[1].Attributes.Get(attribute.CodeMPUnreachNLRI)
	require.True(t, ok)
	assert.Empty(t, a.(*attribute.MPUnreach).Entries)
}

func TestGeneratorNonIPv4FamilyUsesMPReach(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv6Unicast, mustPrefix(t, "2001:db8::/32"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv6Unicast, Entry: entry, Attributes: withOrigin(t)})

	updates, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv6Unicast},
		MaxMessage: 4096,
	})
	require.Empty(t, errs)
	require.Len(t, updates, 1)
	a, ok := updates[0].Attributes.Get(attribute.CodeMPReachNLRI)
	require.True(t, ok)
	mp := a.(*attribute.MPReach)
	assert.Len(t, mp.Entries, 1)
}

func TestGeneratorSplitExpandsPrefix(t *testing.T) {
	out := NewAdjRIBOut()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.4.0.0/22"), 0, false)
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: entry, Attributes: withOrigin(t), Split: 24})

	updates, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast},
		MaxMessage: 4096,
	})
	require.Empty(t, errs)
	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Reachable, 4)
}

func TestAdjRIBInAppliesWithdrawal(t *testing.T) {
	in := NewAdjRIBIn()
	entry := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.5.0.0/24"), 0, false)
	attrs := withOrigin(t)
	in.Apply(bgp.FamilyIPv4Unicast, nil, []nlri.NLRI{entry}, attrs)
	_, ok := in.Get(Key(entry))
	require.True(t, ok)

	in.Apply(bgp.FamilyIPv4Unicast, []nlri.NLRI{entry}, nil, attrs)
	_, ok = in.Get(Key(entry))
	assert.False(t, ok)
}

func TestAdjRIBInCoveringFindsMoreSpecific(t *testing.T) {
	in := NewAdjRIBIn()
	parent := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.6.0.0/16"), 0, false)
	child := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.6.1.0/24"), 0, false)
	attrs := withOrigin(t)
	in.Apply(bgp.FamilyIPv4Unicast, nil, []nlri.NLRI{parent, child}, attrs)

	routes := in.Covering(parent)
	assert.Len(t, routes, 2)
}

// labeledUnicastWire builds one raw labeled-unicast NLRI (RFC 3107 §3) for
// a /24 prefix carrying a single 3-byte label, used to exercise Key()
// against actual wire bytes rather than hand-built structs.
func labeledUnicastWire(t *testing.T, labelBytes [3]byte, addrBytes [3]byte) []byte {
	t.Helper()
	const totalBits = 24 /* label */ + 24 /* prefix */
	return append([]byte{totalBits, labelBytes[0], labelBytes[1], labelBytes[2]}, addrBytes[:]...)
}

// rib §4.5: a withdrawal reusing a route's labeled-unicast NLRI carries the
// synthetic withdraw label 0x800000 (RFC 3107 §3), not the
// originally-announced label, so Key must match on identity fields rather
// than the label stack.
func TestKeyLabeledUnicastWithdrawMatchesAnnounce(t *testing.T) {
	announceRaw := labeledUnicastWire(t, [3]byte{0x00, 0x3E, 0x81}, [3]byte{10, 7, 0}) // label 1000, bottom set
	withdrawRaw := labeledUnicastWire(t, [3]byte{0x80, 0x00, 0x00}, [3]byte{10, 7, 0}) // synthetic withdraw label

	announced, err := nlri.DecodeAll(bgp.FamilyIPv4LabeledUni, announceRaw, false)
	require.NoError(t, err)
	withdrawn, err := nlri.DecodeAll(bgp.FamilyIPv4LabeledUni, withdrawRaw, false)
	require.NoError(t, err)

	assert.Equal(t, Key(announced[0]), Key(withdrawn[0]))
}

func TestAdjRIBInLabeledUnicastWithdrawRemoves(t *testing.T) {
	in := NewAdjRIBIn()
	announceRaw := labeledUnicastWire(t, [3]byte{0x00, 0x1F, 0x41}, [3]byte{10, 8, 0}) // label 500, bottom set
	withdrawRaw := labeledUnicastWire(t, [3]byte{0x80, 0x00, 0x00}, [3]byte{10, 8, 0})

	announced, err := nlri.DecodeAll(bgp.FamilyIPv4LabeledUni, announceRaw, false)
	require.NoError(t, err)
	withdrawn, err := nlri.DecodeAll(bgp.FamilyIPv4LabeledUni, withdrawRaw, false)
	require.NoError(t, err)

	attrs := withOrigin(t)
	in.Apply(bgp.FamilyIPv4LabeledUni, nil, announced, attrs)
	_, ok := in.Get(Key(announced[0]))
	require.True(t, ok)

	in.Apply(bgp.FamilyIPv4LabeledUni, withdrawn, nil, attrs)
	_, ok = in.Get(Key(announced[0]))
	assert.False(t, ok)
}

// rib §4.5 "Update generation": an entry chunkByBudget rejects as too large
// to split must not be marked sent, or the change is lost for good.
func TestGeneratorDoesNotMarkRejectedEntrySent(t *testing.T) {
	out := NewAdjRIBOut()
	fits := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.0.0.0/8"), 0, false)   // 2-byte encoding
	tooBig := nlri.NewInet(bgp.FamilyIPv4Unicast, mustPrefix(t, "10.9.1.5/32"), 0, false) // 5-byte encoding
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: fits, Attributes: withOrigin(t)})
	out.Queue(&Change{Family: bgp.FamilyIPv4Unicast, Entry: tooBig, Attributes: withOrigin(t)})

	_, errs := Generator{}.Generate(out, Options{
		Families:   []bgp.Family{bgp.FamilyIPv4Unicast},
		MaxMessage: perMessageOverhead + 7, // after the 4-byte ORIGIN attribute, a 3-byte NLRI budget: fits the /8 entry, not the /32 one
	})
	require.NotEmpty(t, errs)
	// The rejected /32 entry must still be queued, not silently dropped.
	remaining := out.QueuedChanges()
	require.Len(t, remaining, 1)
	assert.Equal(t, Key(tooBig), Key(remaining[0].Entry))
}

var _ = message.Update{}
