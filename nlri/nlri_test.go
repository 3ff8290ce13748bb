package nlri

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/bgp"
)

func TestInetRoundTrip(t *testing.T) {
	n := &Inet{family: bgp.FamilyIPv4Unicast, Prefix: netip.MustParsePrefix("10.0.0.0/24")}
	wire, err := n.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeAll(bgp.FamilyIPv4Unicast, wire, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, n.Prefix, decoded[0].(*Inet).Prefix)
}

func TestInetAddPathRoundTrip(t *testing.T) {
	n := &Inet{family: bgp.FamilyIPv4Unicast, Prefix: netip.MustParsePrefix("192.0.2.0/24"), PathID: 7, HasID: true}
	wire, err := n.Encode(true)
	require.NoError(t, err)

	decoded, err := DecodeAll(bgp.FamilyIPv4Unicast, wire, true)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	got := decoded[0].(*Inet)
	assert.Equal(t, bgp.PathID(7), got.PathID)
	assert.Equal(t, n.Prefix, got.Prefix)
}

func TestLabeledUnicastRoundTrip(t *testing.T) {
	n := &Labeled{
		family: bgp.FamilyIPv4LabeledUni,
		Labels: bgp.Labels{{Value: 1000, Bottom: true}},
		Prefix: netip.MustParsePrefix("10.1.2.0/24"),
	}
	wire, err := n.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeAll(bgp.FamilyIPv4LabeledUni, wire, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	got := decoded[0].(*Labeled)
	assert.Equal(t, n.Prefix, got.Prefix)
	assert.Equal(t, uint32(1000), got.Labels[0].Value)
}

func TestVPNRoundTrip(t *testing.T) {
	n := &VPN{
		family: bgp.FamilyIPv4MPLSVPN,
		Labels: bgp.Labels{{Value: 42, Bottom: true}},
		RD:     bgp.NewRDASN2(65000, 1),
		Prefix: netip.MustParsePrefix("10.10.0.0/16"),
	}
	wire, err := n.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeAll(bgp.FamilyIPv4MPLSVPN, wire, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	got := decoded[0].(*VPN)
	assert.Equal(t, n.RD, got.RD)
	assert.Equal(t, n.Prefix, got.Prefix)
}

// spec.md §8 scenario 4.
func TestFlowSpecScenario4(t *testing.T) {
	dst := netip.MustParsePrefix("10.0.0.2/32")
	src := netip.MustParsePrefix("10.0.0.1/32")
	fs := &FlowSpec{
		family: bgp.FamilyIPv4FlowSpec,
		Components: []Component{
			&PrefixComponent{CompType: FlowDestinationPrefix, Prefix: dst},
			&PrefixComponent{CompType: FlowSourcePrefix, Prefix: src},
			&NumericComponent{CompType: FlowIPProtocol, Ops: []NumericOp{{Eq: true, Value: 6}}},
			&NumericComponent{CompType: FlowDestinationPort, Ops: []NumericOp{{Eq: true, Value: 3128}}},
		},
	}
	wire, err := fs.Encode(false)
	require.NoError(t, err)
	want := []byte{0x13, 0x01, 0x20, 0x0A, 0x00, 0x00, 0x02, 0x02, 0x20, 0x0A, 0x00, 0x00, 0x01,
		0x03, 0x81, 0x06, 0x05, 0x91, 0x0C, 0x38}
	assert.Equal(t, want, wire)

	decoded, err := DecodeAll(bgp.FamilyIPv4FlowSpec, wire, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Len(t, decoded[0].(*FlowSpec).Components, 4)
}

func TestFlowSpecRejectsOutOfOrderComponents(t *testing.T) {
	// a type-0 component after type 3 in the raw wire bytes.
	raw := []byte{0x04, 0x03, 0x81, 0x06, 0x00}
	_, err := DecodeAll(bgp.FamilyIPv4FlowSpec, raw, false)
	assert.Error(t, err)
}

// spec.md §8 scenario 5: a 19-byte VPLS NLRI body that round-trips.
func TestVPLSScenario5(t *testing.T) {
	n := &VPLS{
		RD:          bgp.NewRDIPv4(netip.MustParseAddr("10.0.0.1"), 100),
		VEID:        100,
		BlockOffset: 50,
		BlockSize:   16,
		LabelBase:   500000,
	}
	wire, err := n.Encode(false)
	require.NoError(t, err)
	assert.Len(t, wire, 19)

	decoded, err := DecodeAll(bgp.Family{AFI: bgp.AFIL2VPN, SAFI: bgp.SAFIVPLS}, wire, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	got := decoded[0].(*VPLS)
	assert.Equal(t, n.RD, got.RD)
	assert.Equal(t, n.VEID, got.VEID)
	assert.Equal(t, n.LabelBase, got.LabelBase)
}

// Component values carry netip.Prefix fields, whose internal representation
// makes plain reflect-based equality (and so testify's assert.Equal) list
// every unexported field in a failure diff; cmp.Diff with EquateComparable
// gives a readable diff instead when components drift.
func TestFlowSpecComponentsDeepEqual(t *testing.T) {
	dst := netip.MustParsePrefix("10.0.0.2/32")
	src := netip.MustParsePrefix("10.0.0.1/32")
	want := []Component{
		&PrefixComponent{CompType: FlowDestinationPrefix, Prefix: dst},
		&PrefixComponent{CompType: FlowSourcePrefix, Prefix: src},
		&NumericComponent{CompType: FlowIPProtocol, Ops: []NumericOp{{Eq: true, Value: 6}}},
	}
	fs := &FlowSpec{family: bgp.FamilyIPv4FlowSpec, Components: want}
	wire, err := fs.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeAll(bgp.FamilyIPv4FlowSpec, wire, false)
	require.NoError(t, err)
	got := decoded[0].(*FlowSpec).Components

	opts := cmp.Options{cmpopts.EquateComparable(netip.Prefix{}, netip.Addr{})}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("Components mismatch (-want +got):\n%s", diff)
	}
}

func TestGenericFamilyRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	decoded, err := DecodeAll(bgp.FamilyBGPLS, raw, false)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	g := decoded[0].(*Generic)
	assert.Equal(t, raw, g.Raw)
	wire, err := g.Encode(false)
	require.NoError(t, err)
	assert.Equal(t, raw, wire)
}
