package bgp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 4.3.  UPDATE Message Format — the NLRI wire shape: one length byte,
// ceil(length/8) address bytes, zero-padded on the right.
func TestCIDRRoundTrip(t *testing.T) {
	cases := []string{"10.0.0.0/8", "192.0.2.1/32", "0.0.0.0/0", "2001:db8::/32", "::1/128"}
	for _, c := range cases {
		p := netip.MustParsePrefix(c)
		bits := 32
		if p.Addr().Is6() {
			bits = 128
		}
		wire := PutCIDR(p)
		got, rest, err := ParseCIDR(wire, bits)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, p.Masked(), got)
	}
}

func TestCIDRRejectsOversizeLength(t *testing.T) {
	_, _, err := ParseCIDR([]byte{33, 10, 0, 0, 0}, 32)
	assert.Error(t, err)
}

func TestRDRoundTrip(t *testing.T) {
	rd := NewRDASN2(65000, 100)
	assert.Equal(t, RDTypeASN2, rd.Type())
	assert.Equal(t, "65000:100", rd.String())

	parsed, err := ParseRD(rd[:])
	require.NoError(t, err)
	assert.Equal(t, rd, parsed)

	v4 := NewRDIPv4(netip.MustParseAddr("10.0.0.1"), 100)
	assert.Equal(t, "10.0.0.1:100", v4.String())

	v4asn := NewRDASN4(4200000000, 5)
	assert.Equal(t, RDTypeASN4, v4asn.Type())
}

// spec.md §3 "MPLS Label stack ... Withdrawals use the synthetic label 0x800000"
func TestLabelsWithdrawSentinel(t *testing.T) {
	ls := WithdrawStack()
	wire := ls.Bytes()
	assert.Equal(t, []byte{0x80, 0x00, 0x00}, wire)

	parsed, rest, err := ParseLabels(wire)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, parsed, 1)
	assert.True(t, parsed[0].IsWithdraw())
}

func TestLabelsRoundTrip(t *testing.T) {
	ls := Labels{{Value: 100}, {Value: 200, Bottom: true}}
	wire := ls.Bytes()
	parsed, rest, err := ParseLabels(wire)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, parsed, 2)
	assert.Equal(t, uint32(100), parsed[0].Value)
	assert.False(t, parsed[0].Bottom)
	assert.Equal(t, uint32(200), parsed[1].Value)
	assert.True(t, parsed[1].Bottom)
}

func TestNotifyError(t *testing.T) {
	n := NewNotify(NotifyHoldExpired, 0, nil)
	assert.Equal(t, "NOTIFICATION(4,0)", n.Error())
}
