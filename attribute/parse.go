package attribute

import (
	"bgpd/bgp"
	"bgpd/stream"
)

// Parse decodes the concatenated path-attributes bytes of an UPDATE,
// following spec.md §4.2 "Parsing" steps 1-9. A cache hit short-circuits
// straight to the cached Collection.
func (p *Parser) Parse(raw []byte, ctx Context) (*Collection, error) {
	if c, ok := p.cache.lookup(raw); ok {
		return c, nil
	}
	c, err := parse(raw, ctx)
	if err != nil {
		return nil, err
	}
	p.cache.store(raw, c)
	return c, nil
}

func parse(raw []byte, ctx Context) (*Collection, error) {
	c := NewCollection()
	cur := stream.New(raw)

	for cur.Remaining() > 0 {
		rawFlags, err := cur.Byte()
		if err != nil {
			return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList, nil)
		}
		flags := Flags(rawFlags)
		typeByte, err := cur.Byte()
		if err != nil {
			return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList, nil)
		}
		code := Code(typeByte)

		var length int
		if flags.ExtendedLength() {
			l, err := cur.Uint16()
			if err != nil {
				return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList, nil)
			}
			length = int(l)
		} else {
			l, err := cur.Byte()
			if err != nil {
				return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList, nil)
			}
			length = int(l)
		}

		body, err := cur.Bytes(length)
		if err != nil {
			return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeAttributeLengthError, nil)
		}

		behavior, registered := behaviors[code]
		if !registered {
			behavior = BehaviorOf(code)
		}

		// step 2: for optional attributes, mask the partial bit before
		// flag validation.
		validationFlags := flags
		if flags.Optional() {
			validationFlags &^= FlagPartial
		}

		// step 3: duplicate occurrence of a NO_DUPLICATE attribute.
		if _, exists := c.attrs[code]; exists {
			if behavior.NoDuplicate {
				return nil, bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList, nil)
			}
		}

		// step 4: observed flags must match the registered class, or the
		// class's malformed-handling policy applies (unknown codes have no
		// registered class and skip straight to the unknown-attribute
		// handling in steps 7/8 below).
		if registered && (validationFlags.Optional() != behavior.Optional || validationFlags.Transitive() != behavior.Transitive) {
			if err := applyMalformedFlags(c, code, behavior); err != nil {
				return nil, err
			}
			continue
		}

		// step 5: zero length where not allowed.
		if length == 0 && !behavior.ValidZero {
			if err := applyMalformed(c, code, behavior, "zero-length body"); err != nil {
				return nil, err
			}
			continue
		}

		decode, known := decoders[code]
		if !known {
			// steps 7/8: unknown attribute. Transitive => preserve
			// verbatim with the partial bit forced on re-emit. Otherwise
			// (unknown, non-transitive) silently drop it.
			if flags.Transitive() {
				c.Set(&GenericAttribute{code: code, flags: flags, body: body})
			}
			continue
		}

		attr, err := decode(validationFlags, body, ctx)
		if err != nil {
			// step 6: malformed body per the class's policy.
			if merr := applyMalformed(c, code, behavior, err.Error()); merr != nil {
				return nil, merr
			}
			continue
		}
		c.Set(attr)
	}

	mergeAS4(c)

	return c, nil
}

// applyMalformed applies a class's malformed-handling policy (spec.md
// §4.2 step 5/6). A non-nil return is a hard session-resetting error;
// nil means the caller should silently move past this attribute (treat-
// as-withdraw records the downgrade on the collection itself).
func applyMalformed(c *Collection, code Code, behavior Behavior, reason string) error {
	switch {
	case behavior.TreatAsWithdraw:
		if c.treatAsWithdraw == nil {
			c.treatAsWithdraw = &Withdrawn{Code: code, Reason: reason}
		}
		return nil
	case behavior.Discard:
		return nil
	default:
		return bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeOptionalAttributeError, nil)
	}
}

// applyMalformedFlags is applyMalformed's step-4 counterpart: an
// attribute's observed flags disagreeing with its registered class is
// reported as SubcodeAttributeFlagsError rather than
// SubcodeOptionalAttributeError when the class's policy is neither
// treat-as-withdraw nor discard.
func applyMalformedFlags(c *Collection, code Code, behavior Behavior) error {
	switch {
	case behavior.TreatAsWithdraw:
		if c.treatAsWithdraw == nil {
			c.treatAsWithdraw = &Withdrawn{Code: code, Reason: "attribute flags mismatch"}
		}
		return nil
	case behavior.Discard:
		return nil
	default:
		return bgp.NewNotify(bgp.NotifyUpdate, bgp.SubcodeAttributeFlagsError, nil)
	}
}
