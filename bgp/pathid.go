package bgp

// PathID is the optional 32-bit per-prefix Add-Path annotation (RFC 7911,
// spec.md §3 "Path Identifier").
type PathID uint32

// NoPathID marks an NLRI that carries no path identifier (add-path not
// negotiated for this family/direction).
const NoPathID PathID = 0
