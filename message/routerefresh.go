package message

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// ROUTE-REFRESH subtype (RFC 2918 §3, enhanced route refresh RFC 7313 §3).
const (
	RefreshRequest uint8 = 0
	RefreshBegin   uint8 = 1
	RefreshEnd     uint8 = 2
)

// RouteRefresh is a ROUTE-REFRESH message body: 2-byte AFI, 1-byte
// subtype, 1-byte SAFI (spec.md §4.4 "ROUTE-REFRESH").
type RouteRefresh struct {
	Family  bgp.Family
	Subtype uint8
}

func DecodeRouteRefresh(body []byte) (*RouteRefresh, error) {
	if len(body) != 4 {
		return nil, fmt.Errorf("route-refresh: want 4 bytes, got %d", len(body))
	}
	cur := stream.New(body)
	afi, _ := cur.Uint16()
	subtype, _ := cur.Byte()
	safi, _ := cur.Byte()
	return &RouteRefresh{Family: bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(safi)}, Subtype: subtype}, nil
}

func (r *RouteRefresh) Encode() []byte {
	out := stream.PutUint16(nil, uint16(r.Family.AFI))
	return append(out, r.Subtype, byte(r.Family.SAFI))
}
