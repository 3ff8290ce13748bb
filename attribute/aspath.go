package attribute

import (
	"fmt"

	"bgpd/bgp"
	"bgpd/stream"
)

// Segment types (RFC 4271 §4.3).
const (
	SegmentASSet        uint8 = 1
	SegmentASSequence   uint8 = 2
	SegmentASConfedSeq  uint8 = 3
	SegmentASConfedSet  uint8 = 4
)

// Segment is one AS_PATH path segment: a typed, ordered (for AS_SEQUENCE)
// or unordered (for AS_SET) list of ASNs.
type Segment struct {
	Type uint8
	ASNs []bgp.ASN
}

// ASPath is the AS_PATH (or, pre-merge, AS4_PATH) attribute (RFC 4271
// §5.1.2, RFC 6793 §4.2).
type ASPath struct {
	flags    Flags
	code     Code
	Segments []Segment
}

func (a *ASPath) Code() Code   { return a.code }
func (a *ASPath) Flags() Flags { return FlagTransitive }

func init() {
	register(CodeASPath, decodeASPathWith(false))
	register(CodeAS4Path, decodeASPathWith(true))
}

func decodeASPathWith(fourByte bool) decodeFunc {
	return func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		code := CodeASPath
		if fourByte {
			code = CodeAS4Path
		}
		width := 2
		if fourByte || ctx.FourByteASN {
			width = 4
		}
		cur := stream.New(body)
		var segs []Segment
		for cur.Remaining() > 0 {
			segType, err := cur.Byte()
			if err != nil {
				return nil, fmt.Errorf("as-path: truncated segment header")
			}
			count, err := cur.Byte()
			if err != nil {
				return nil, fmt.Errorf("as-path: truncated segment header")
			}
			asns := make([]bgp.ASN, 0, count)
			for i := 0; i < int(count); i++ {
				if width == 4 {
					v, err := cur.Uint32()
					if err != nil {
						return nil, fmt.Errorf("as-path: truncated AS4 entry")
					}
					asns = append(asns, bgp.ASN(v))
				} else {
					v, err := cur.Uint16()
					if err != nil {
						return nil, fmt.Errorf("as-path: truncated AS2 entry")
					}
					asns = append(asns, bgp.ASN(v))
				}
			}
			segs = append(segs, Segment{Type: segType, ASNs: asns})
		}
		return &ASPath{flags: flags, code: code, Segments: segs}, nil
	}
}

// Encode packs AS_PATH using 4-byte ASNs iff the session negotiated
// 4-byte ASN support; AS4_PATH (when emitted at all, which NoGeneration
// forbids post-merge) always uses 4-byte ASNs.
func (a *ASPath) Encode(ctx Context) ([]byte, error) {
	width := 2
	if a.code == CodeAS4Path || ctx.FourByteASN {
		width = 4
	}
	var out []byte
	for _, seg := range a.Segments {
		if len(seg.ASNs) > 255 {
			return nil, fmt.Errorf("as-path: segment has %d ASNs, max 255", len(seg.ASNs))
		}
		out = append(out, seg.Type, byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if width == 4 {
				out = stream.PutUint32(out, uint32(asn))
			} else {
				out = stream.PutUint16(out, uint16(asn))
			}
		}
	}
	return out, nil
}

// Length returns the total ASN count across all segments, used by the AS2/
// AS4 merge length comparison (RFC 6793 §4.2.3).
func (a *ASPath) Length() int {
	n := 0
	for _, s := range a.Segments {
		n += len(s.ASNs)
	}
	return n
}

// mergeAS4 implements RFC 6793 §4.2.3: when both AS_PATH and AS4_PATH are
// present, the AS2 sequence prefix is kept and the AS4 sequence tail is
// appended when AS4 is shorter; otherwise AS4 is used unchanged. When the
// kept prefix ends in an AS_SEQUENCE and the AS4 path starts with one, the
// two are joined into a single segment. The merged result replaces AS_PATH; AS4_PATH is not retained (it is
// NoGeneration and only ever exists to seed this merge, spec.md §4.2 step
// 9 / §9 Design Notes "Attribute merging AS2/AS4").
func mergeAS4(c *Collection) {
	as2Attr, haveAS2 := c.Get(CodeASPath)
	as4Attr, haveAS4 := c.Get(CodeAS4Path)
	if !haveAS2 || !haveAS4 {
		return
	}
	as2, ok2 := as2Attr.(*ASPath)
	as4, ok4 := as4Attr.(*ASPath)
	if !ok2 || !ok4 {
		return
	}

	var merged []Segment
	if as4.Length() < as2.Length() {
		keep := as2.Length() - as4.Length()
		merged = append(merged, truncateSegments(as2.Segments, keep)...)
		tail := as4.Segments
		if n := len(merged); n > 0 && len(tail) > 0 &&
			merged[n-1].Type == SegmentASSequence && tail[0].Type == SegmentASSequence {
			joined := append(append([]bgp.ASN(nil), merged[n-1].ASNs...), tail[0].ASNs...)
			merged[n-1] = Segment{Type: SegmentASSequence, ASNs: joined}
			tail = tail[1:]
		}
		merged = append(merged, tail...)
	} else {
		merged = as4.Segments
	}

	c.Set(&ASPath{flags: as2.flags, code: CodeASPath, Segments: merged})
	c.Delete(CodeAS4Path)
}

// truncateSegments keeps the first `keep` ASNs across segs, preserving
// segment boundaries and types.
func truncateSegments(segs []Segment, keep int) []Segment {
	var out []Segment
	for _, s := range segs {
		if keep <= 0 {
			break
		}
		if len(s.ASNs) <= keep {
			out = append(out, s)
			keep -= len(s.ASNs)
			continue
		}
		out = append(out, Segment{Type: s.Type, ASNs: append([]bgp.ASN(nil), s.ASNs[:keep]...)})
		keep = 0
	}
	return out
}

// NewASPath builds an AS_PATH attribute holding the given segments.
func NewASPath(segments ...Segment) *ASPath {
	return &ASPath{code: CodeASPath, Segments: segments}
}

// PrependASSequence returns a new AS_PATH with one AS_SEQUENCE segment
// holding asns placed ahead of path's existing segments (RFC 4271
// §5.1.2(a)); path itself is not modified.
func PrependASSequence(path *ASPath, asns ...bgp.ASN) *ASPath {
	segs := append([]Segment{{Type: SegmentASSequence, ASNs: asns}}, path.Segments...)
	return &ASPath{code: CodeASPath, Segments: segs}
}
