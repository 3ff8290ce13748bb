package attribute

import (
	"fmt"
	"sort"

	"bgpd/stream"
)

// Encode packs this Collection into canonical wire form: attribute type
// codes ascending, synthesizing ORIGIN and LOCAL_PREF when missing on an
// IBGP session, per spec.md §4.2 "Emission".
func (c *Collection) Encode(ctx Context) ([]byte, error) {
	working := c.attrs
	if ctx.IBGP {
		working = c.withIBGPDefaults()
	}

	codes := make([]Code, 0, len(working))
	for code := range working {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var out []byte
	for _, code := range codes {
		attr := working[code]
		if BehaviorOf(code).NoGeneration {
			continue
		}
		body, err := attr.Encode(ctx)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", code, err)
		}
		flags := attr.Flags()
		if len(body) > 255 {
			flags |= FlagExtendedLength
		}
		out = append(out, byte(flags), byte(code))
		if flags.ExtendedLength() {
			out = stream.PutUint16(out, uint16(len(body)))
		} else {
			out = append(out, byte(len(body)))
		}
		out = append(out, body...)
	}
	return out, nil
}

func (c *Collection) withIBGPDefaults() map[Code]Attribute {
	working := make(map[Code]Attribute, len(c.attrs)+2)
	for k, v := range c.attrs {
		working[k] = v
	}
	if _, ok := working[CodeOrigin]; !ok {
		working[CodeOrigin] = &OriginAttr{Value: OriginIGP}
	}
	if _, ok := working[CodeLocalPref]; !ok {
		working[CodeLocalPref] = &LocalPref{Value: 100}
	}
	return working
}
