package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/attribute"
	"bgpd/bgp"
)

func TestHeaderRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3}
	wire := Frame(TypeUpdate, body)
	h, err := ParseHeader(wire, StandardMaxLength)
	require.NoError(t, err)
	assert.Equal(t, TypeUpdate, h.Type)
	assert.Equal(t, uint16(HeaderLength+len(body)), h.Length)
}

// spec.md §8 boundary behaviors: length 18 or 65536 rejected with
// Notify(1,2); a non-all-ones marker rejected with Notify(1,1).
func TestHeaderRejectsBadLength(t *testing.T) {
	wire := Frame(TypeKeepalive, nil)
	wire[17] = 18 // force length field to 18, below the 19-byte minimum
	wire[16] = 0
	_, err := ParseHeader(wire, StandardMaxLength)
	require.Error(t, err)
	n, ok := err.(*bgp.Notify)
	require.True(t, ok)
	assert.Equal(t, bgp.NotifyHeader, n.Code)
	assert.Equal(t, bgp.SubcodeBadMessageLength, n.Subcode)
}

func TestHeaderRejectsBadMarker(t *testing.T) {
	wire := Frame(TypeKeepalive, nil)
	wire[0] = 0x00
	_, err := ParseHeader(wire, StandardMaxLength)
	require.Error(t, err)
	n, ok := err.(*bgp.Notify)
	require.True(t, ok)
	assert.Equal(t, bgp.NotifyHeader, n.Code)
	assert.Equal(t, bgp.SubcodeConnectionNotSynchronized, n.Subcode)
}

func TestOpenRoundTrip(t *testing.T) {
	o := &Open{
		Version:    bgp.CurrentVersion,
		ASN:        uint16(bgp.ASTrans),
		HoldTime:   180,
		Identifier: bgp.Identifier(0x01010101),
		Capabilities: Capabilities{
			Families:        []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyIPv6Unicast},
			FourByteASN:     true,
			ASN4:            70000,
			RouteRefresh:    true,
			AddPathFamilies: map[bgp.Family]AddPathDirection{},
		},
	}
	wire := o.Encode()
	got, err := DecodeOpen(wire)
	require.NoError(t, err)
	assert.Equal(t, o.HoldTime, got.HoldTime)
	assert.Equal(t, o.Identifier, got.Identifier)
	assert.True(t, got.Capabilities.FourByteASN)
	assert.Equal(t, bgp.ASN(70000), got.Capabilities.ASN4)
	assert.True(t, got.Capabilities.RouteRefresh)
	assert.ElementsMatch(t, o.Capabilities.Families, got.Capabilities.Families)
}

// spec.md §8 scenario 1: capability negotiation.
func TestNegotiateScenario1(t *testing.T) {
	local := &Open{
		Capabilities: Capabilities{
			Families:        []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyIPv6Unicast},
			FourByteASN:     true,
			RouteRefresh:    true,
			AddPathFamilies: map[bgp.Family]AddPathDirection{},
		},
	}
	remote := &Open{
		Capabilities: Capabilities{
			Families:        []bgp.Family{bgp.FamilyIPv4Unicast},
			FourByteASN:     true,
			AddPathFamilies: map[bgp.Family]AddPathDirection{},
		},
	}
	n, err := Negotiate(local, remote, 180*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast}, n.Families)
	assert.False(t, n.RouteRefresh)
	assert.True(t, n.FourByteASN)
}

// spec.md §8 scenario 2: hold-time negotiation.
func TestNegotiateHoldTime(t *testing.T) {
	local := &Open{Capabilities: Capabilities{AddPathFamilies: map[bgp.Family]AddPathDirection{}}}
	remote := &Open{HoldTime: 90, Capabilities: Capabilities{AddPathFamilies: map[bgp.Family]AddPathDirection{}}}
	n, err := Negotiate(local, remote, 180*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, n.HoldTime)

	remote2 := &Open{HoldTime: 0, Capabilities: Capabilities{AddPathFamilies: map[bgp.Family]AddPathDirection{}}}
	n2, err := Negotiate(local, remote2, 180*time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), n2.HoldTime)
}

// spec.md §8 boundary behaviors: an UPDATE with exactly 4 zero bytes of
// payload is the IPv4-unicast EOR.
func TestUpdateEndOfRIB(t *testing.T) {
	body := []byte{0, 0, 0, 0}
	u, err := DecodeUpdate(body, attribute.NewParser(), attribute.Context{}, false)
	require.NoError(t, err)
	assert.True(t, u.IsEndOfRIB())
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	r := &RouteRefresh{Family: bgp.FamilyIPv4Unicast, Subtype: RefreshBegin}
	wire := r.Encode()
	got, err := DecodeRouteRefresh(wire)
	require.NoError(t, err)
	assert.Equal(t, r.Family, got.Family)
	assert.Equal(t, r.Subtype, got.Subtype)
}

func TestNotificationRoundTrip(t *testing.T) {
	n := bgp.NewNotify(bgp.NotifyCease, bgp.SubcodeConnectionCollisionResolution, []byte("bye"))
	wire := EncodeNotification(n)
	got, err := DecodeNotification(wire)
	require.NoError(t, err)
	assert.Equal(t, n.Code, got.Code)
	assert.Equal(t, n.Subcode, got.Subcode)
	assert.Equal(t, n.Data, got.Data)
}
