package message

import (
	"time"

	"bgpd/bgp"
)

// Negotiated is the immutable result of one OPEN exchange: everything the
// rest of the session depends on once both OPENs have been validated
// (spec.md §3 "Negotiated session state", §9 "keep Negotiated as an
// immutable value computed once after OPEN exchange").
type Negotiated struct {
	LocalASN, RemoteASN     bgp.ASN
	FourByteASN             bool
	HoldTime                time.Duration
	Families                []bgp.Family
	RouteRefresh            bool
	ExtendedMessage         bool
	GracefulRestart         bool
	RestartState            bool
	AddPath                 map[bgp.Family]AddPathDirection
	RemoteIdentifier        bgp.Identifier
}

// MaxMessageLength returns the negotiated per-message size ceiling
// (spec.md §4.4 "Extended max (both sides advertised EXTENDED_MESSAGE
// capability): 65535").
func (n *Negotiated) MaxMessageLength() int {
	if n.ExtendedMessage {
		return ExtendedMaxLength
	}
	return StandardMaxLength
}

// Negotiate resolves two OPENs into session-wide facts (spec.md §8
// scenario 1 "Capability negotiation", scenario 2 "Hold-time
// negotiation").
func Negotiate(local, remote *Open, localHold time.Duration) (*Negotiated, error) {
	n := &Negotiated{
		RemoteIdentifier: remote.Identifier,
		AddPath:          map[bgp.Family]AddPathDirection{},
	}

	n.FourByteASN = local.Capabilities.FourByteASN && remote.Capabilities.FourByteASN
	n.LocalASN = asnFromOpen(local)
	n.RemoteASN = asnFromOpen(remote)

	remoteHold := time.Duration(remote.HoldTime) * time.Second
	n.HoldTime = localHold
	if remoteHold < n.HoldTime {
		n.HoldTime = remoteHold
	}

	n.RouteRefresh = local.Capabilities.RouteRefresh && remote.Capabilities.RouteRefresh
	n.ExtendedMessage = local.Capabilities.ExtendedMessage && remote.Capabilities.ExtendedMessage
	n.GracefulRestart = local.Capabilities.GracefulRestart && remote.Capabilities.GracefulRestart
	n.RestartState = remote.Capabilities.RestartState

	n.Families = intersectFamilies(local.Capabilities.Families, remote.Capabilities.Families)

	for f, localDir := range local.Capabilities.AddPathFamilies {
		remoteDir, ok := remote.Capabilities.AddPathFamilies[f]
		if !ok {
			continue
		}
		n.AddPath[f] = AddPathDirection{
			// We send with a path-id iff the remote side can receive one;
			// we expect to receive a path-id iff the remote side sends one.
			Send:    localDir.Send && remoteDir.Receive,
			Receive: localDir.Receive && remoteDir.Send,
		}
	}

	return n, nil
}

func asnFromOpen(o *Open) bgp.ASN {
	if o.ASN == uint16(bgp.ASTrans) && o.Capabilities.FourByteASN {
		return o.Capabilities.ASN4
	}
	return bgp.ASN(o.ASN)
}

func intersectFamilies(a, b []bgp.Family) []bgp.Family {
	bSet := make(map[bgp.Family]bool, len(b))
	for _, f := range b {
		bSet[f] = true
	}
	var out []bgp.Family
	for _, f := range a {
		if bSet[f] {
			out = append(out, f)
		}
	}
	return out
}
