package session

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/bgp"
	"bgpd/message"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{
		LocalASN:        65001,
		LocalIdentifier: bgp.Identifier(0x0A000001),
		PeerASN:         65002,
		PeerAddr:        netip.MustParseAddr("10.0.0.2"),
		Families:        []bgp.Family{bgp.FamilyIPv4Unicast},
	}
	require.NoError(t, ApplyDefaults(&cfg))
	require.NoError(t, Validate(&cfg))
	return cfg
}

func TestManualStartDialsWhenActive(t *testing.T) {
	s := New(testConfig(t), nil)
	action := s.Deliver(ManualStart, nil)
	assert.True(t, action.Dial)
	assert.Equal(t, Connect, s.State())
}

func TestManualStartGoesActiveWhenPassive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Passive = true
	s := New(cfg, nil)
	action := s.Deliver(ManualStart, nil)
	assert.False(t, action.Dial)
	assert.Equal(t, Active, s.State())
}

func TestFullHandshakeReachesEstablished(t *testing.T) {
	s := New(testConfig(t), nil)
	s.Deliver(ManualStart, nil)
	s.Deliver(TCPConnectionConfirmed, nil)
	require.Equal(t, OpenSent, s.State())

	remote := &message.Open{
		Version:    bgp.CurrentVersion,
		ASN:        65002,
		HoldTime:   90,
		Identifier: bgp.Identifier(0x0A000002),
		Capabilities: message.Capabilities{
			Families: []bgp.Family{bgp.FamilyIPv4Unicast},
		},
	}
	action := s.Deliver(BGPOpen, remote)
	require.NotNil(t, action.Send)
	require.Equal(t, OpenConfirm, s.State())
	require.NotNil(t, s.Negotiated())
	assert.Equal(t, 90*time.Second, s.Negotiated().HoldTime)

	action = s.Deliver(KeepAliveMsg, nil)
	assert.Equal(t, Established, s.State())
	assert.Nil(t, action.Notify)
}

func TestHoldTimerExpiryRaisesNotification(t *testing.T) {
	s := New(testConfig(t), nil)
	s.Deliver(ManualStart, nil)
	s.Deliver(TCPConnectionConfirmed, nil)
	s.Deliver(BGPOpen, &message.Open{
		Version:      bgp.CurrentVersion,
		ASN:          65002,
		HoldTime:     90,
		Identifier:   bgp.Identifier(0x0A000002),
		Capabilities: message.Capabilities{Families: []bgp.Family{bgp.FamilyIPv4Unicast}},
	})
	s.Deliver(KeepAliveMsg, nil)
	require.Equal(t, Established, s.State())

	action := s.Deliver(HoldTimerExpires, nil)
	assert.Equal(t, Idle, s.State())
	require.NotNil(t, action.Notify)
	assert.Equal(t, bgp.NotifyHoldExpired, action.Notify.Code)
	assert.True(t, action.Drop)
}

func TestOpenCollisionDumpRaisesCeaseCollisionResolution(t *testing.T) {
	s := New(testConfig(t), nil)
	s.Deliver(ManualStart, nil)
	s.Deliver(TCPConnectionConfirmed, nil)
	s.Deliver(BGPOpen, &message.Open{
		Version:      bgp.CurrentVersion,
		ASN:          65002,
		HoldTime:     90,
		Identifier:   bgp.Identifier(0x0A000002),
		Capabilities: message.Capabilities{Families: []bgp.Family{bgp.FamilyIPv4Unicast}},
	})
	require.Equal(t, OpenConfirm, s.State())

	action := s.Deliver(OpenCollisionDump, nil)
	require.NotNil(t, action.Notify)
	assert.Equal(t, bgp.NotifyCease, action.Notify.Code)
	assert.Equal(t, bgp.SubcodeConnectionCollisionResolution, action.Notify.Subcode)
	assert.Equal(t, Idle, s.State())
}

func TestGenerateUpdatesBeforeNegotiationErrors(t *testing.T) {
	s := New(testConfig(t), nil)
	_, errs := s.GenerateUpdates()
	require.Len(t, errs, 1)
}
