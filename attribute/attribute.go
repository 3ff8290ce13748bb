// Package attribute implements the BGP path-attribute codec: parsing the
// concatenated path-attributes bytes of an UPDATE into an
// AttributeCollection, and packing one back into canonical wire form
// (spec.md §4.2).
//
// Grounded on the teacher's bgp/attribute.go flag-bit accessors and the
// walk of optional/transitive handling in bgp/update.go's handleUpdate,
// generalized from a single hard-coded pass into the class-behavior table
// spec.md §3/§9 calls for.
package attribute

import (
	"fmt"
	"sort"
	"sync"

	"bgpd/bgp"
)

// Code is a path-attribute type code (RFC 4271 §5, IANA registry).
type Code uint8

const (
	CodeOrigin              Code = 1
	CodeASPath              Code = 2
	CodeNextHop             Code = 3
	CodeMultiExitDisc       Code = 4
	CodeLocalPref           Code = 5
	CodeAtomicAggregate     Code = 6
	CodeAggregator          Code = 7
	CodeCommunities         Code = 8
	CodeOriginatorID        Code = 9
	CodeClusterList         Code = 10
	CodeMPReachNLRI         Code = 14
	CodeMPUnreachNLRI       Code = 15
	CodeExtendedCommunities Code = 16
	CodeAS4Path             Code = 17
	CodeAS4Aggregator       Code = 18
	CodePMSITunnel          Code = 22
	CodeAIGP                Code = 26
	CodeLargeCommunities    Code = 32
	CodeBGPLS               Code = 29
	CodePrefixSID           Code = 40
)

// Flags are the 4 high bits of the 1-byte attribute-flags octet
// (RFC 4271 §4.3).
type Flags uint8

const (
	FlagOptional       Flags = 0x80
	FlagTransitive     Flags = 0x40
	FlagPartial        Flags = 0x20
	FlagExtendedLength Flags = 0x10
)

func (f Flags) Optional() bool       { return f&FlagOptional != 0 }
func (f Flags) Transitive() bool     { return f&FlagTransitive != 0 }
func (f Flags) Partial() bool        { return f&FlagPartial != 0 }
func (f Flags) ExtendedLength() bool { return f&FlagExtendedLength != 0 }

// Origin values (RFC 4271 §5.1.1).
type Origin uint8

const (
	OriginIGP        Origin = 0
	OriginEGP        Origin = 1
	OriginIncomplete Origin = 2
)

// Behavior records the anomaly-handling policy for one attribute class
// (spec.md §3 "Attribute behavior flags (per type)"). Optional/Transitive
// are the class's registered flags (RFC 4271 §4.3); the rest are the
// knobs governing how the parser handles anomalies for a given attribute
// type.
type Behavior struct {
	Optional        bool // registered as an optional attribute (flags byte's high bit)
	Transitive      bool // registered as transitive; well-known attributes are always transitive
	ValidZero       bool // may have a zero-length body
	NoDuplicate     bool // a second occurrence resets the session
	TreatAsWithdraw bool // malformed => convert to withdrawal (RFC 7606)
	Discard         bool // malformed => drop silently
	NoGeneration    bool // never emitted by the update generator
}

// behaviors is the per-code anomaly policy table. Every well-known
// attribute is NoDuplicate per RFC 7606 §3 ("MUST discard the UPDATE"
// maps in this module to NoDuplicate => session reset on duplicate,
// matching spec.md §4.2 step 3); most are additionally TreatAsWithdraw for
// malformed bodies, which is the RFC 7606 default for well-known
// mandatory and optional transitive attributes. Optional/Transitive match
// each attribute's registered class and are checked against the observed
// flags byte by parse() (spec.md §4.2 step 4).
var behaviors = map[Code]Behavior{
	CodeOrigin:              {Optional: false, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeASPath:              {Optional: false, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeNextHop:             {Optional: false, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeMultiExitDisc:       {Optional: true, Transitive: false, ValidZero: false, NoDuplicate: true, Discard: true},
	CodeLocalPref:           {Optional: false, Transitive: true, NoDuplicate: true, Discard: true},
	CodeAtomicAggregate:     {Optional: false, Transitive: true, ValidZero: true, NoDuplicate: true, Discard: true},
	CodeAggregator:          {Optional: true, Transitive: true, NoDuplicate: true, Discard: true},
	CodeCommunities:         {Optional: true, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeOriginatorID:        {Optional: true, Transitive: false, NoDuplicate: true, Discard: true},
	CodeClusterList:         {Optional: true, Transitive: false, NoDuplicate: true, Discard: true},
	CodeMPReachNLRI:         {Optional: true, Transitive: false, NoDuplicate: true, TreatAsWithdraw: true},
	CodeMPUnreachNLRI:       {Optional: true, Transitive: false, NoDuplicate: true, TreatAsWithdraw: true},
	CodeExtendedCommunities: {Optional: true, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeAS4Path:             {Optional: true, Transitive: true, NoDuplicate: true, Discard: true, NoGeneration: true},
	CodeAS4Aggregator:       {Optional: true, Transitive: true, NoDuplicate: true, Discard: true, NoGeneration: true},
	CodePMSITunnel:          {Optional: true, Transitive: true, NoDuplicate: true, Discard: true},
	CodeAIGP:                {Optional: true, Transitive: false, NoDuplicate: true, Discard: true},
	CodeLargeCommunities:    {Optional: true, Transitive: true, NoDuplicate: true, TreatAsWithdraw: true},
	CodeBGPLS:               {Optional: true, Transitive: false, NoDuplicate: true, Discard: true},
	CodePrefixSID:           {Optional: true, Transitive: true, NoDuplicate: true, Discard: true},
}

// BehaviorOf returns the anomaly policy for code, defaulting to the
// RFC 7606 "optional, unrecognized" policy (Discard) for anything not in
// the table - unknown attributes are handled by the Generic path instead
// of this table (spec.md §4.2 step 7).
func BehaviorOf(code Code) Behavior {
	if b, ok := behaviors[code]; ok {
		return b
	}
	return Behavior{Discard: true}
}

// Attribute is one decoded path attribute.
type Attribute interface {
	Code() Code
	Flags() Flags
	// Encode returns this attribute's body bytes (not including the
	// flags/type/length header, which Collection.Encode adds uniformly).
	Encode(ctx Context) ([]byte, error)
}

// Context carries the negotiated facts the attribute codec needs: whether
// 4-byte ASNs are in use (RFC 6793), which NLRI families are carried
// natively (IPv4 unicast/multicast get NEXT_HOP; everything else is
// carried inside MP_REACH/MP_UNREACH, spec.md §4.2 "Emission"), and which
// families carry a path identifier in the receive direction so
// MP_REACH/MP_UNREACH decode the right wire shape for each family
// (spec.md §3 "Path Identifier", §4.3 "MP_REACH / MP_UNREACH").
type Context struct {
	FourByteASN bool
	IBGP        bool // local_as == peer_as: synthesize ORIGIN/LOCAL_PREF if absent

	// AddPathReceive reports, per family, whether incoming NLRI carries a
	// path identifier (message.Negotiated.AddPath[family].Receive). A
	// family absent from the map behaves as false.
	AddPathReceive map[bgp.Family]bool
}

// Withdrawn marks an attribute set that downgraded its NLRIs to
// withdrawals under RFC 7606 treat-as-withdraw handling (spec.md §4.2 step
// 4, §4.5 "Incoming").
type Withdrawn struct {
	Code   Code
	Reason string
}

func (w *Withdrawn) Error() string {
	return fmt.Sprintf("attribute %d treat-as-withdraw: %s", w.Code, w.Reason)
}

// GenericAttribute preserves a transitive attribute this module does not
// recognize (an unrecognized non-transitive one is dropped instead - see
// parse) verbatim, re-emitting it with the Partial bit set (spec.md §3 "Unknown transitive attributes").
type GenericAttribute struct {
	code  Code
	flags Flags
	body  []byte
}

func (g *GenericAttribute) Code() Code   { return g.code }
func (g *GenericAttribute) Flags() Flags { return g.flags | FlagPartial }
func (g *GenericAttribute) Encode(Context) ([]byte, error) {
	return g.body, nil
}

// Collection is the parsed attribute set of one UPDATE: a mapping from
// attribute-type-code to the parsed attribute (spec.md §4.2 "Parsing").
type Collection struct {
	attrs map[Code]Attribute
	// treatAsWithdraw is set when parsing determined this whole UPDATE's
	// NLRIs must be downgraded to withdrawals (RFC 7606).
	treatAsWithdraw *Withdrawn
}

func NewCollection() *Collection {
	return &Collection{attrs: map[Code]Attribute{}}
}

func (c *Collection) Get(code Code) (Attribute, bool) {
	a, ok := c.attrs[code]
	return a, ok
}

func (c *Collection) Set(a Attribute) {
	c.attrs[a.Code()] = a
}

func (c *Collection) Delete(code Code) {
	delete(c.attrs, code)
}

func (c *Collection) Len() int { return len(c.attrs) }

// TreatAsWithdraw reports whether parsing this attribute set determined
// the UPDATE's NLRIs must be treated as withdrawals (RFC 7606).
func (c *Collection) TreatAsWithdraw() (*Withdrawn, bool) {
	if c.treatAsWithdraw == nil {
		return nil, false
	}
	return c.treatAsWithdraw, true
}

// Codes returns every attribute code present, ascending - the canonical
// emission order (spec.md §4.2 "Emission ... canonical ordering (by type
// code ascending)").
func (c *Collection) Codes() []Code {
	out := make([]Code, 0, len(c.attrs))
	for code := range c.attrs {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cache holds the last fully parsed attribute-bytes and Collection so that
// consecutive UPDATEs announcing many prefixes under one attribute set
// reuse the parsed object (spec.md §4.2 "The last fully parsed
// attribute-bytes and its AttributeCollection are cached").
type cache struct {
	mu     sync.Mutex
	key    string
	result *Collection
}

func (ch *cache) lookup(raw []byte) (*Collection, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.result != nil && ch.key == string(raw) {
		return ch.result, true
	}
	return nil, false
}

func (ch *cache) store(raw []byte, c *Collection) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.key = string(raw)
	ch.result = c
}

// Parser decodes path-attribute blocks, caching the last result (spec.md
// §4.2). A Parser is not safe for concurrent use by multiple peers; each
// session owns one.
type Parser struct {
	cache cache
}

func NewParser() *Parser {
	return &Parser{}
}

// decodeFunc decodes one attribute body into its typed Attribute.
type decodeFunc func(flags Flags, body []byte, ctx Context) (Attribute, error)

// decoders is the per-code decode registry, populated by each attribute
// file's init(). A code absent here is handled by the Generic path.
var decoders = map[Code]decodeFunc{}

func register(code Code, f decodeFunc) {
	decoders[code] = f
}
