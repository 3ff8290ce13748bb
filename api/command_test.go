package api

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/attribute"
	"bgpd/bgp"
)

func TestParseAnnounceRoute(t *testing.T) {
	cmd, err := Parse("announce route 10.0.0.0/24 next-hop 192.0.2.1 origin igp med 100 local-preference 200 as-path [ 65001 65002 ] community [ 65000:1 no-export ]")
	require.NoError(t, err)
	require.Equal(t, KindAnnounceRoute, cmd.Kind)
	require.NotNil(t, cmd.Change)
	assert.False(t, cmd.Change.Withdraw)
	assert.Equal(t, bgp.FamilyIPv4Unicast, cmd.Change.Family)

	nh, ok := cmd.Change.Attributes.Get(attribute.CodeNextHop)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", nh.(*attribute.NextHopAttr).Addr.String())

	origin, ok := cmd.Change.Attributes.Get(attribute.CodeOrigin)
	require.True(t, ok)
	assert.Equal(t, attribute.OriginIGP, origin.(*attribute.OriginAttr).Value)

	med, ok := cmd.Change.Attributes.Get(attribute.CodeMultiExitDisc)
	require.True(t, ok)
	assert.Equal(t, uint32(100), med.(*attribute.MultiExitDisc).Value)

	comms, ok := cmd.Change.Attributes.Get(attribute.CodeCommunities)
	require.True(t, ok)
	assert.Len(t, comms.(*attribute.Communities).Values, 2)
}

func TestParseAnnounceRouteMissingNextHopErrors(t *testing.T) {
	_, err := Parse("announce route 10.0.0.0/24")
	assert.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseWithdrawRouteDoesNotRequireNextHop(t *testing.T) {
	cmd, err := Parse("withdraw route 10.0.0.0/24")
	require.NoError(t, err)
	assert.Equal(t, KindWithdrawRoute, cmd.Kind)
	assert.True(t, cmd.Change.Withdraw)
}

func TestParseAnnounceVPLS(t *testing.T) {
	cmd, err := Parse("announce vpls rd 10.0.0.1:100 endpoint 100 base 500000 offset 50 size 16 next-hop 10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, KindAnnounceVPLS, cmd.Kind)
	assert.Equal(t, uint16(100), cmd.VPLS.VEID)
	assert.Equal(t, uint32(500000), cmd.VPLS.LabelBase)
	assert.Equal(t, uint16(50), cmd.VPLS.BlockOffset)
	assert.Equal(t, uint16(16), cmd.VPLS.BlockSize)
}

func TestParseShowNeighborModifier(t *testing.T) {
	cmd, err := Parse("show neighbor extensive")
	require.NoError(t, err)
	assert.Equal(t, KindShowNeighbor, cmd.Kind)
	assert.Equal(t, "extensive", cmd.Modifier)
}

func TestParseTeardownWithSelector(t *testing.T) {
	cmd, err := Parse("teardown neighbor 10.0.0.2 6")
	require.NoError(t, err)
	assert.Equal(t, KindTeardown, cmd.Kind)
	assert.Equal(t, "10.0.0.2", cmd.Selector.Neighbor)
	assert.Equal(t, 6, cmd.Code)
}

func TestParseUnrecognizedVerbErrors(t *testing.T) {
	_, err := Parse("frobnicate everything")
	assert.Error(t, err)
}

func TestHandshakeAndRegistry(t *testing.T) {
	h, err := ParseHandshake("session ping abc-123 1700000000")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", h.ClientUUID)

	var reg ClientRegistry
	id1, preempted := reg.Register("abc-123")
	assert.False(t, preempted)
	assert.True(t, reg.IsActive("abc-123"))

	id2, preempted := reg.Register("def-456")
	assert.True(t, preempted)
	assert.NotEqual(t, id1, id2)
	assert.False(t, reg.IsActive("abc-123"))
}

func TestResponderDoneAndError(t *testing.T) {
	var buf bytes.Buffer
	r := NewResponder(&buf)
	require.NoError(t, r.Line("neighbor 10.0.0.2 up"))
	require.NoError(t, r.Done())
	assert.Equal(t, "neighbor 10.0.0.2 up\ndone\n", buf.String())
}

func TestResponderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewResponder(&buf)
	require.NoError(t, r.JSON(map[string]string{"state": "established"}))
	assert.Contains(t, buf.String(), `"state":"established"`)
}
