package attribute

// PMSITunnel is the PMSI_TUNNEL attribute (RFC 6514 §5): tunnel type,
// flags, MPLS label, and a tunnel-identifier whose shape is tunnel-type
// specific. The identifier is kept opaque; MCAST-VPN consumers that need
// to dial into a specific tunnel type parse Identifier themselves.
type PMSITunnel struct {
	flags      Flags
	TunnelType uint8
	TunnelFlags uint8
	Label      [3]byte
	Identifier []byte
}

func (a *PMSITunnel) Code() Code   { return CodePMSITunnel }
func (a *PMSITunnel) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *PMSITunnel) Encode(Context) ([]byte, error) {
	out := []byte{a.TunnelFlags, a.TunnelType, a.Label[0], a.Label[1], a.Label[2]}
	return append(out, a.Identifier...), nil
}

func init() {
	register(CodePMSITunnel, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		if len(body) < 5 {
			return &GenericAttribute{code: CodePMSITunnel, flags: flags, body: body}, nil
		}
		return &PMSITunnel{
			flags:       flags,
			TunnelFlags: body[0],
			TunnelType:  body[1],
			Label:       [3]byte{body[2], body[3], body[4]},
			Identifier:  append([]byte(nil), body[5:]...),
		}, nil
	})
}

// LinkStateAttribute is the BGP-LS attribute (RFC 7752 §3.3): an opaque
// sequence of link-state TLVs, preserved verbatim for the same reason the
// BGP-LS NLRI family is (draft churn outpaces a full decode's value here;
// see nlri.Generic).
type LinkStateAttribute struct {
	flags Flags
	Raw   []byte
}

func (a *LinkStateAttribute) Code() Code   { return CodeBGPLS }
func (a *LinkStateAttribute) Flags() Flags { return FlagOptional | (a.flags & FlagPartial) }
func (a *LinkStateAttribute) Encode(Context) ([]byte, error) {
	return a.Raw, nil
}

func init() {
	register(CodeBGPLS, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		return &LinkStateAttribute{flags: flags, Raw: append([]byte(nil), body...)}, nil
	})
}

// PrefixSID is the PREFIX_SID attribute (RFC 8669 §3): a sequence of
// sub-TLVs. Kept opaque for the same reason as LinkStateAttribute.
type PrefixSID struct {
	flags Flags
	Raw   []byte
}

func (a *PrefixSID) Code() Code   { return CodePrefixSID }
func (a *PrefixSID) Flags() Flags { return FlagOptional | FlagTransitive | (a.flags & FlagPartial) }
func (a *PrefixSID) Encode(Context) ([]byte, error) {
	return a.Raw, nil
}

func init() {
	register(CodePrefixSID, func(flags Flags, body []byte, ctx Context) (Attribute, error) {
		return &PrefixSID{flags: flags, Raw: append([]byte(nil), body...)}, nil
	})
}
