package bgp

import "fmt"

// AFI is a 16-bit Address Family Identifier (RFC 4760 §5, IANA registry).
type AFI uint16

// SAFI is an 8-bit Subsequent Address Family Identifier (RFC 4760 §5).
type SAFI uint8

// AFI values this module understands.
const (
	AFIIPv4   AFI = 1
	AFIIPv6   AFI = 2
	AFIL2VPN  AFI = 25
	AFIBGPLS  AFI = 16388
)

// SAFI values this module understands.
const (
	SAFIUnicast       SAFI = 1
	SAFIMulticast     SAFI = 2
	SAFILabeledUni    SAFI = 4
	SAFIMCastVPN      SAFI = 5
	SAFIVPLS          SAFI = 65
	SAFIEVPN          SAFI = 70
	SAFIBGPLS         SAFI = 71
	SAFIBGPLSVPN      SAFI = 72
	SAFISRPolicy      SAFI = 73
	SAFIMUP           SAFI = 85
	SAFIMPLSVPN       SAFI = 128
	SAFIFlowSpec      SAFI = 133
	SAFIFlowSpecVPN   SAFI = 134
)

// Family is the (AFI, SAFI) product that keys NLRI shape, add-path
// applicability, and label/RD presence throughout the codec (spec.md §3
// "Many decisions ... are keyed on this pair").
type Family struct {
	AFI  AFI
	SAFI SAFI
}

func (f Family) String() string {
	return fmt.Sprintf("%s/%s", f.AFI, f.SAFI)
}

// NeedsPathID reports nothing on its own; add-path applicability is a
// per-session negotiated property (spec.md §4.3 Design Notes "add-path
// asymmetry"), not a static function of family, so it is not modeled here.

func (a AFI) String() string {
	switch a {
	case AFIIPv4:
		return "ipv4"
	case AFIIPv6:
		return "ipv6"
	case AFIL2VPN:
		return "l2vpn"
	case AFIBGPLS:
		return "bgp-ls"
	default:
		return fmt.Sprintf("afi(%d)", uint16(a))
	}
}

func (s SAFI) String() string {
	switch s {
	case SAFIUnicast:
		return "unicast"
	case SAFIMulticast:
		return "multicast"
	case SAFILabeledUni:
		return "labeled-unicast"
	case SAFIMCastVPN:
		return "mcast-vpn"
	case SAFIVPLS:
		return "vpls"
	case SAFIEVPN:
		return "evpn"
	case SAFIBGPLS:
		return "bgp-ls"
	case SAFIBGPLSVPN:
		return "bgp-ls-vpn"
	case SAFISRPolicy:
		return "sr-policy"
	case SAFIMUP:
		return "mup"
	case SAFIMPLSVPN:
		return "mpls-vpn"
	case SAFIFlowSpec:
		return "flow-spec"
	case SAFIFlowSpecVPN:
		return "flow-spec-vpn"
	default:
		return fmt.Sprintf("safi(%d)", uint8(s))
	}
}

// Common well-known families, named for readability at call sites.
var (
	FamilyIPv4Unicast    = Family{AFIIPv4, SAFIUnicast}
	FamilyIPv6Unicast    = Family{AFIIPv6, SAFIUnicast}
	FamilyIPv4Multicast  = Family{AFIIPv4, SAFIMulticast}
	FamilyIPv4LabeledUni = Family{AFIIPv4, SAFILabeledUni}
	FamilyIPv6LabeledUni = Family{AFIIPv6, SAFILabeledUni}
	FamilyIPv4MPLSVPN    = Family{AFIIPv4, SAFIMPLSVPN}
	FamilyIPv6MPLSVPN    = Family{AFIIPv6, SAFIMPLSVPN}
	FamilyIPv4FlowSpec   = Family{AFIIPv4, SAFIFlowSpec}
	FamilyL2VPNVPLS      = Family{AFIL2VPN, SAFIVPLS}
	FamilyL2VPNEVPN      = Family{AFIL2VPN, SAFIEVPN}
	FamilyBGPLS          = Family{AFIBGPLS, SAFIBGPLS}
	FamilyMCastVPN       = Family{AFIIPv4, SAFIMCastVPN}
	FamilyMUP            = Family{AFIIPv4, SAFIMUP}
	FamilySRPolicy       = Family{AFIIPv4, SAFISRPolicy}
)
