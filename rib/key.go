package rib

import (
	"encoding/hex"
	"fmt"

	"bgpd/bgp"
	"bgpd/nlri"
)

// Key returns the string that identifies one NLRI within a RIB: spec.md
// §4.5 defines the keyspace as "(family, RD-if-any, prefix, path-id)" -
// deliberately excluding the label value itself. A withdrawal for a
// labeled-unicast or MPLS-VPN NLRI carries the synthetic withdraw label
// 0x800000 (RFC 3107 §3, RFC 4364) rather than whatever label the route was
// originally announced with, so keying on the full wire encoding (which
// includes the label stack) would make a withdrawal's key never match its
// announcement's key. Deriving the key from identity fields only - family,
// RD, prefix, path-id - keeps withdraw/announce keys equal regardless of
// the label carried.
func Key(n nlri.NLRI) string {
	switch v := n.(type) {
	case *nlri.Inet:
		return fmt.Sprintf("%s|%s|%s", v.Family(), v.Prefix, pathIDSuffix(v.HasID, v.PathID))
	case *nlri.Labeled:
		return fmt.Sprintf("%s|%s|%s", v.Family(), v.Prefix, pathIDSuffix(v.HasID, v.PathID))
	case *nlri.VPN:
		return fmt.Sprintf("%s|%s|%s|%s", v.Family(), hex.EncodeToString(v.RD[:]), v.Prefix, pathIDSuffix(v.HasID, v.PathID))
	default:
		b, _ := n.Encode(false)
		return fmt.Sprintf("%s|%s", n.Family(), hex.EncodeToString(b))
	}
}

func pathIDSuffix(hasID bool, id bgp.PathID) string {
	if !hasID {
		return "-"
	}
	return fmt.Sprintf("%d", id)
}
