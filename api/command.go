package api

import (
	"fmt"
	"strconv"
	"strings"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/nlri"
	"bgpd/rib"
)

// Kind identifies which grammar production a parsed Command came from.
type Kind int

const (
	KindAnnounceRoute Kind = iota
	KindWithdrawRoute
	KindAnnounceVPLS
	KindWithdrawVPLS
	KindAnnounceEOR
	KindAnnounceRouteRefresh
	KindShowNeighbor
	KindShowAdjRIB
	KindFlushAdjRIBOut
	KindTeardown
	KindReload
	KindRestart
	KindShutdown
	KindVersion
	KindHelp
	KindAnnounceOperational
	KindAnnounceFlow
	KindWithdrawFlow
)

// Command is one fully parsed helper/control-channel request.
type Command struct {
	Kind Kind

	// Route-level fields (KindAnnounceRoute / KindWithdrawRoute).
	Change *rib.Change

	// VPLS fields.
	VPLS         *nlri.VPLS
	VPLSNextHop  string

	// EOR / route-refresh fields.
	Family bgp.Family

	// show/flush/teardown selector and modifiers.
	Selector Selector
	Modifier string // "summary" | "extensive" | "configuration" | "json" | "in" | "out" | ""
	Code     int
	Subcode  int

	// Raw tail kept for commands this module recognizes but only forwards
	// (flow, operational) rather than fully decoding.
	Raw string
}

// Selector picks which neighbor(s) a show/flush/teardown command targets
// (spec.md §6.2 "Selectors").
type Selector struct {
	Wildcard bool
	Neighbor string
	LocalIP  string
	LocalAS  string
	PeerAS   string
	RouterID string
}

// Parse parses one line of the helper/control grammar subset named in
// spec.md §6.2. It never returns a *bgp.Notify; malformed commands are
// reported as a *ParseError so the caller can answer with a single `error`
// line followed by `done`, without touching any session.
func Parse(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, newParseError(line, "empty command")
	}
	verb := fields[0]
	switch verb {
	case "announce":
		return parseAnnounce(line, fields[1:])
	case "withdraw":
		return parseWithdraw(line, fields[1:])
	case "show":
		return parseShow(line, fields[1:])
	case "flush":
		return parseFlush(line, fields[1:])
	case "teardown":
		return parseTeardown(line, fields[1:])
	case "reload":
		return &Command{Kind: KindReload}, nil
	case "restart":
		return &Command{Kind: KindRestart}, nil
	case "shutdown":
		return &Command{Kind: KindShutdown}, nil
	case "version":
		return &Command{Kind: KindVersion}, nil
	case "help":
		return &Command{Kind: KindHelp}, nil
	default:
		return nil, newParseError(line, "unrecognized verb "+verb)
	}
}

func parseAnnounce(line string, fields []string) (*Command, error) {
	if len(fields) == 0 {
		return nil, newParseError(line, "announce: missing object")
	}
	switch fields[0] {
	case "route":
		return parseRoute(line, fields[1:], false)
	case "vpls":
		return parseVPLS(line, fields[1:], false)
	case "eor":
		return parseEOR(line, fields[1:])
	case "route-refresh":
		f, err := parseFamily(fields[1:])
		if err != nil {
			return nil, newParseError(line, err.Error())
		}
		return &Command{Kind: KindAnnounceRouteRefresh, Family: f}, nil
	case "flow":
		return &Command{Kind: KindAnnounceFlow, Raw: line}, nil
	case "operational":
		return &Command{Kind: KindAnnounceOperational, Raw: line}, nil
	default:
		return nil, newParseError(line, "announce: unrecognized object "+fields[0])
	}
}

func parseWithdraw(line string, fields []string) (*Command, error) {
	if len(fields) == 0 {
		return nil, newParseError(line, "withdraw: missing object")
	}
	switch fields[0] {
	case "route":
		return parseRoute(line, fields[1:], true)
	case "vpls":
		return parseVPLS(line, fields[1:], true)
	case "flow":
		return &Command{Kind: KindWithdrawFlow, Raw: line}, nil
	default:
		return nil, newParseError(line, "withdraw: unrecognized object "+fields[0])
	}
}

// parseRoute parses the "announce route <prefix> next-hop <ip> [...]" /
// "withdraw route <prefix> [...]" grammar (spec.md §6.2).
func parseRoute(line string, fields []string, withdraw bool) (*Command, error) {
	if len(fields) == 0 {
		return nil, newParseError(line, "route: missing prefix")
	}
	prefix, err := parsePrefix(fields[0])
	if err != nil {
		return nil, newParseError(line, err.Error())
	}
	family := bgp.FamilyIPv4Unicast
	if prefix.Addr().Is6() {
		family = bgp.FamilyIPv6Unicast
	}

	attrs := attribute.NewCollection()
	var nextHop string
	kv := fields[1:]
	for i := 0; i < len(kv); i++ {
		switch kv[i] {
		case "next-hop":
			if i+1 >= len(kv) {
				return nil, newParseError(line, "route: next-hop missing value")
			}
			nextHop = kv[i+1]
			i++
		case "origin":
			if i+1 >= len(kv) {
				return nil, newParseError(line, "route: origin missing value")
			}
			o, err := parseOrigin(kv[i+1])
			if err != nil {
				return nil, newParseError(line, err.Error())
			}
			attrs.Set(&attribute.OriginAttr{Value: o})
			i++
		case "med":
			if i+1 >= len(kv) {
				return nil, newParseError(line, "route: med missing value")
			}
			v, err := strconv.ParseUint(kv[i+1], 10, 32)
			if err != nil {
				return nil, newParseError(line, "route: bad med "+kv[i+1])
			}
			attrs.Set(&attribute.MultiExitDisc{Value: uint32(v)})
			i++
		case "local-preference":
			if i+1 >= len(kv) {
				return nil, newParseError(line, "route: local-preference missing value")
			}
			v, err := strconv.ParseUint(kv[i+1], 10, 32)
			if err != nil {
				return nil, newParseError(line, "route: bad local-preference "+kv[i+1])
			}
			attrs.Set(&attribute.LocalPref{Value: uint32(v)})
			i++
		case "as-path":
			end := i + 1
			var asns []bgp.ASN
			for end < len(kv) && kv[end] != "next-hop" && kv[end] != "med" && kv[end] != "local-preference" &&
				kv[end] != "community" && kv[end] != "extended-community" {
				v, err := strconv.ParseUint(strings.Trim(kv[end], "[],"), 10, 32)
				if err == nil {
					asns = append(asns, bgp.ASN(v))
				}
				end++
			}
			attrs.Set(attribute.NewASPath(attribute.Segment{Type: attribute.SegmentASSequence, ASNs: asns}))
			i = end - 1
		case "community":
			end := i + 1
			var vals []attribute.Community
			for end < len(kv) && kv[end] != "next-hop" && kv[end] != "med" && kv[end] != "local-preference" &&
				kv[end] != "as-path" && kv[end] != "extended-community" {
				c, err := parseCommunity(strings.Trim(kv[end], "[],"))
				if err == nil {
					vals = append(vals, c)
				}
				end++
			}
			attrs.Set(&attribute.Communities{Values: vals})
			i = end - 1
		}
	}

	if !withdraw && nextHop == "" {
		return nil, newParseError(line, "route: announce requires next-hop")
	}
	if nextHop != "" {
		addr, err := parseAddr(nextHop)
		if err != nil {
			return nil, newParseError(line, err.Error())
		}
		attrs.Set(&attribute.NextHopAttr{Addr: addr})
	}

	entry := nlri.NewInet(family, prefix, 0, false)
	return &Command{
		Kind: kindOf(withdraw),
		Change: &rib.Change{
			Family:     family,
			Entry:      entry,
			Attributes: attrs,
			Withdraw:   withdraw,
		},
	}, nil
}

func kindOf(withdraw bool) Kind {
	if withdraw {
		return KindWithdrawRoute
	}
	return KindAnnounceRoute
}

// parseVPLS parses "announce vpls rd <rd> endpoint <n> base <n> offset <n>
// size <n> next-hop <ip>" (spec.md §6.2, §8 scenario 5).
func parseVPLS(line string, fields []string, withdraw bool) (*Command, error) {
	v := &nlri.VPLS{}
	var nextHop string
	for i := 0; i < len(fields); i++ {
		if i+1 >= len(fields) {
			break
		}
		val := fields[i+1]
		switch fields[i] {
		case "rd":
			rd, err := parseRD(val)
			if err != nil {
				return nil, newParseError(line, err.Error())
			}
			v.RD = rd
		case "endpoint":
			n, err := strconv.ParseUint(val, 10, 16)
			if err != nil {
				return nil, newParseError(line, "vpls: bad endpoint "+val)
			}
			v.VEID = uint16(n)
		case "base":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, newParseError(line, "vpls: bad base "+val)
			}
			v.LabelBase = uint32(n)
		case "offset":
			n, err := strconv.ParseUint(val, 10, 16)
			if err != nil {
				return nil, newParseError(line, "vpls: bad offset "+val)
			}
			v.BlockOffset = uint16(n)
		case "size":
			n, err := strconv.ParseUint(val, 10, 16)
			if err != nil {
				return nil, newParseError(line, "vpls: bad size "+val)
			}
			v.BlockSize = uint16(n)
		case "next-hop":
			nextHop = val
		}
		i++
	}
	if !withdraw && nextHop == "" {
		return nil, newParseError(line, "vpls: announce requires next-hop")
	}
	kind := KindAnnounceVPLS
	if withdraw {
		kind = KindWithdrawVPLS
	}
	return &Command{Kind: kind, VPLS: v, VPLSNextHop: nextHop}, nil
}

func parseEOR(line string, fields []string) (*Command, error) {
	f, err := parseFamily(fields)
	if err != nil {
		return nil, newParseError(line, err.Error())
	}
	return &Command{Kind: KindAnnounceEOR, Family: f}, nil
}

func parseShow(line string, fields []string) (*Command, error) {
	if len(fields) == 0 {
		return nil, newParseError(line, "show: missing object")
	}
	switch fields[0] {
	case "neighbor":
		c := &Command{Kind: KindShowNeighbor}
		if len(fields) > 1 {
			c.Modifier = fields[1]
		}
		return c, nil
	case "adj-rib":
		if len(fields) < 2 {
			return nil, newParseError(line, "show adj-rib: missing direction")
		}
		c := &Command{Kind: KindShowAdjRIB, Modifier: fields[1]}
		if len(fields) > 2 {
			c.Raw = fields[2]
		}
		return c, nil
	default:
		return nil, newParseError(line, "show: unrecognized object "+fields[0])
	}
}

func parseFlush(line string, fields []string) (*Command, error) {
	if len(fields) < 2 || fields[0] != "adj-rib" || fields[1] != "out" {
		return nil, newParseError(line, "flush: only adj-rib out is supported")
	}
	c := &Command{Kind: KindFlushAdjRIBOut, Selector: Selector{Wildcard: true}}
	sel, err := parseSelector(fields[2:])
	if err != nil {
		return nil, newParseError(line, err.Error())
	}
	c.Selector = sel
	return c, nil
}

func parseTeardown(line string, fields []string) (*Command, error) {
	if len(fields) < 2 {
		return nil, newParseError(line, "teardown: missing selector/code")
	}
	sel, err := parseSelector(fields[:len(fields)-1])
	if err != nil {
		return nil, newParseError(line, err.Error())
	}
	code, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return nil, newParseError(line, "teardown: bad code "+fields[len(fields)-1])
	}
	return &Command{Kind: KindTeardown, Selector: sel, Code: code}, nil
}

func parseSelector(fields []string) (Selector, error) {
	if len(fields) == 0 || fields[0] == "*" {
		return Selector{Wildcard: true}, nil
	}
	var sel Selector
	for i := 0; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "neighbor":
			sel.Neighbor = fields[i+1]
		case "local-ip":
			sel.LocalIP = fields[i+1]
		case "local-as":
			sel.LocalAS = fields[i+1]
		case "peer-as":
			sel.PeerAS = fields[i+1]
		case "router-id":
			sel.RouterID = fields[i+1]
		default:
			return sel, fmt.Errorf("selector: unrecognized qualifier %s", fields[i])
		}
	}
	return sel, nil
}

func parseFamily(fields []string) (bgp.Family, error) {
	if len(fields) < 2 {
		return bgp.Family{}, fmt.Errorf("expected <afi> <safi>")
	}
	afi, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return bgp.Family{}, fmt.Errorf("bad afi %s", fields[0])
	}
	safi, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return bgp.Family{}, fmt.Errorf("bad safi %s", fields[1])
	}
	return bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(safi)}, nil
}

func parseOrigin(s string) (attribute.Origin, error) {
	switch s {
	case "igp":
		return attribute.OriginIGP, nil
	case "egp":
		return attribute.OriginEGP, nil
	case "incomplete":
		return attribute.OriginIncomplete, nil
	default:
		return 0, fmt.Errorf("route: unrecognized origin %s", s)
	}
}

func parseCommunity(s string) (attribute.Community, error) {
	switch s {
	case "no-export":
		return attribute.CommunityNoExport, nil
	case "no-advertise":
		return attribute.CommunityNoAdvertise, nil
	case "no-export-subconfed":
		return attribute.CommunityNoExportSubconf, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("community: bad value %s", s)
	}
	hi, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("community: bad value %s", s)
	}
	lo, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("community: bad value %s", s)
	}
	return attribute.Community(uint32(hi)<<16 | uint32(lo)), nil
}

// parseRD parses "asn:assigned" or "ip:assigned" into an RD, choosing the
// IPv4 administrative shape when the left side is an address, otherwise the
// 2-byte ASN shape for ASNs up to 65535 and the 4-byte ASN shape above that.
func parseRD(s string) (bgp.RD, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return bgp.RD{}, fmt.Errorf("route-distinguisher: bad value %s", s)
	}
	assigned, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return bgp.RD{}, fmt.Errorf("route-distinguisher: bad assigned number %s", parts[1])
	}
	if addr, err := parseAddr(parts[0]); err == nil {
		return bgp.NewRDIPv4(addr, uint16(assigned)), nil
	}
	asn, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return bgp.RD{}, fmt.Errorf("route-distinguisher: bad administrator %s", parts[0])
	}
	if asn <= 0xFFFF {
		return bgp.NewRDASN2(uint16(asn), uint32(assigned)), nil
	}
	return bgp.NewRDASN4(uint32(asn), uint16(assigned)), nil
}
