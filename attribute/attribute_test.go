package attribute

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/bgp"
	"bgpd/nlri"
)

// spec.md §8 scenario 3: the encoded bytes must begin with
// "40 01 01 00" (ORIGIN, well-known transitive, length 1, IGP).
func TestCollectionEncodeScenario3(t *testing.T) {
	c := NewCollection()
	c.Set(&OriginAttr{Value: OriginIGP})
	c.Set(NewASPath(Segment{Type: SegmentASSequence, ASNs: []bgp.ASN{65001, 65002}}))
	c.Set(&NextHopAttr{Addr: netip.MustParseAddr("192.0.2.1")})
	c.Set(&MultiExitDisc{Value: 100})
	c.Set(&LocalPref{Value: 200})
	c.Set(&Communities{Values: []Community{0xFDE80001, 0xFDE80002}})

	out, err := c.Encode(Context{FourByteASN: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x01, 0x01, 0x00}, out[:4])
}

func TestAttributeRoundTripOrigin(t *testing.T) {
	p := NewParser()
	raw := []byte{0x40, 0x01, 0x01, 0x02}
	c, err := p.Parse(raw, Context{})
	require.NoError(t, err)
	attr, ok := c.Get(CodeOrigin)
	require.True(t, ok)
	assert.Equal(t, OriginIncomplete, attr.(*OriginAttr).Value)

	body, err := attr.Encode(Context{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, body)
}

func TestParserCachesByRawBytes(t *testing.T) {
	p := NewParser()
	raw := []byte{0x40, 0x01, 0x01, 0x00}
	c1, err := p.Parse(raw, Context{})
	require.NoError(t, err)
	c2, err := p.Parse(raw, Context{})
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestDuplicateWellKnownAttributeResetsSession(t *testing.T) {
	raw := []byte{
		0x40, 0x01, 0x01, 0x00,
		0x40, 0x01, 0x01, 0x01,
	}
	_, err := parse(raw, Context{})
	require.Error(t, err)
	notify, ok := err.(*bgp.Notify)
	require.True(t, ok)
	assert.Equal(t, bgp.NotifyUpdate, notify.Code)
	assert.Equal(t, bgp.SubcodeMalformedAttributeList, notify.Subcode)
}

// RFC 6793 §4.2.3 merge: AS2 prefix kept, AS4 tail appended when AS4 is
// shorter than AS2.
func TestMergeAS4ShorterAppendsTail(t *testing.T) {
	c := NewCollection()
	c.Set(&ASPath{code: CodeASPath, Segments: []Segment{
		{Type: SegmentASSequence, ASNs: []bgp.ASN{bgp.ASTrans, bgp.ASTrans, 65003}},
	}})
	c.Set(&ASPath{code: CodeAS4Path, Segments: []Segment{
		{Type: SegmentASSequence, ASNs: []bgp.ASN{65003}},
	}})
	mergeAS4(c)

	attr, ok := c.Get(CodeASPath)
	require.True(t, ok)
	merged := attr.(*ASPath)
	require.Len(t, merged.Segments, 1)
	assert.Equal(t, []bgp.ASN{bgp.ASTrans, bgp.ASTrans, 65003}, merged.Segments[0].ASNs)

	_, stillHasAS4 := c.Get(CodeAS4Path)
	assert.False(t, stillHasAS4)
}

func TestMergeAS4NotShorterUsesAS4Unchanged(t *testing.T) {
	c := NewCollection()
	c.Set(&ASPath{code: CodeASPath, Segments: []Segment{
		{Type: SegmentASSequence, ASNs: []bgp.ASN{65001}},
	}})
	c.Set(&ASPath{code: CodeAS4Path, Segments: []Segment{
		{Type: SegmentASSequence, ASNs: []bgp.ASN{65001, 65002, 65003}},
	}})
	mergeAS4(c)

	attr, ok := c.Get(CodeASPath)
	require.True(t, ok)
	merged := attr.(*ASPath)
	assert.Equal(t, []bgp.ASN{65001, 65002, 65003}, merged.Segments[0].ASNs)
}

func TestUnknownTransitiveAttributePreservedAsGeneric(t *testing.T) {
	raw := []byte{0xC0, 250, 0x02, 0xAB, 0xCD}
	c, err := parse(raw, Context{})
	require.NoError(t, err)
	attr, ok := c.Get(Code(250))
	require.True(t, ok)
	_, isGeneric := attr.(*GenericAttribute)
	assert.True(t, isGeneric)
	assert.True(t, attr.Flags().Partial())
}

// spec.md §4.2 step 4: observed flags disagreeing with the registered
// class apply that class's malformed-handling policy rather than being
// silently accepted.
func TestAttributeFlagsMismatchDiscardedPerClass(t *testing.T) {
	// LOCAL_PREF is registered well-known transitive (0x40); sending it
	// optional transitive (0xC0) is a flags mismatch, and LOCAL_PREF's
	// policy is Discard.
	raw := []byte{0xC0, 0x05, 0x04, 0x00, 0x00, 0x00, 0xC8}
	c, err := parse(raw, Context{})
	require.NoError(t, err)
	_, ok := c.Get(CodeLocalPref)
	assert.False(t, ok)
}

func TestAttributeFlagsMismatchTreatAsWithdraw(t *testing.T) {
	// MP_REACH_NLRI is registered optional non-transitive (0x80); sending
	// it well-known transitive (0x40) is a flags mismatch, and
	// MP_REACH_NLRI's policy is TreatAsWithdraw.
	raw := []byte{0x40, 0x0E, 0x03, 0x00, 0x01, 0x01}
	c, err := parse(raw, Context{})
	require.NoError(t, err)
	_, marked := c.TreatAsWithdraw()
	assert.True(t, marked)
}

// A family with receive add-path negotiated must decode MP_REACH_NLRI
// entries with a path identifier; Context.AddPathReceive is how that
// per-family fact reaches the MP_REACH/MP_UNREACH decoders.
func TestMPReachDecodeHonorsAddPathReceivePerFamily(t *testing.T) {
	entry := nlri.NewInet(bgp.FamilyIPv6Unicast, netip.MustParsePrefix("2001:db8::/32"), 7, true)
	mp := &MPReach{Family: bgp.FamilyIPv6Unicast, NextHop: netip.MustParseAddr("2001:db8::1").AsSlice(), Entries: []nlri.NLRI{entry}, AddPath: true}
	body, err := mp.Encode(Context{})
	require.NoError(t, err)

	raw := append([]byte{0x80, byte(CodeMPReachNLRI), byte(len(body))}, body...)
	c, err := parse(raw, Context{AddPathReceive: map[bgp.Family]bool{bgp.FamilyIPv6Unicast: true}})
	require.NoError(t, err)
	attr, ok := c.Get(CodeMPReachNLRI)
	require.True(t, ok)
	got := attr.(*MPReach).Entries[0].(*nlri.Inet)
	assert.True(t, got.HasID)
	assert.Equal(t, bgp.PathID(7), got.PathID)
}

func TestUnknownNonTransitiveAttributeDropped(t *testing.T) {
	raw := []byte{0x80, 251, 0x02, 0xAB, 0xCD}
	c, err := parse(raw, Context{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}
