package nlri

import (
	"fmt"

	"bgpd/bgp"
)

// Generic preserves the NLRI body verbatim for families whose TLV sets are
// large and still churning in their drafts (BGP-LS, MCAST-VPN, MUP,
// SR-policy). spec.md §4.3 allows mirroring these byte-for-byte without
// full semantic decode ("implementers must consult the referenced
// RFC/draft"); until a specific deployment needs deeper inspection of one
// of these families, round-tripping the raw bytes is sufficient and keeps
// this package from chasing draft churn it doesn't need to resolve.
type Generic struct {
	family bgp.Family
	Raw    []byte
}

func (n *Generic) Family() bgp.Family { return n.family }

func (n *Generic) Encode(addPath bool) ([]byte, error) {
	return n.Raw, nil
}

// genericEntireRemainder consumes every remaining byte as a single opaque
// entry - these families are framed by the surrounding MP_REACH/MP_UNREACH
// length, not by a self-delimiting NLRI structure this module decodes.
func genericEntireRemainder(family bgp.Family) decodeFunc {
	return func(b []byte, addPath bool) (NLRI, []byte, error) {
		if len(b) == 0 {
			return nil, nil, fmt.Errorf("nlri: empty generic body for %s", family)
		}
		return &Generic{family: family, Raw: append([]byte(nil), b...)}, nil, nil
	}
}

func init() {
	register(bgp.FamilyBGPLS, genericEntireRemainder(bgp.FamilyBGPLS))
	register(bgp.FamilyMCastVPN, genericEntireRemainder(bgp.FamilyMCastVPN))
	register(bgp.FamilyMUP, genericEntireRemainder(bgp.FamilyMUP))
	register(bgp.FamilySRPolicy, genericEntireRemainder(bgp.FamilySRPolicy))
}
