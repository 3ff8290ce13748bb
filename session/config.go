package session

import (
	"net/netip"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"bgpd/bgp"
)

// Config is one peer's static configuration (spec.md §9.3 "session.Config
// ... creasty/defaults + go-playground/validator"). Zero-valued optional
// fields are filled in by ApplyDefaults; Validate then rejects anything
// that still doesn't make sense before the session is started.
type Config struct {
	LocalASN        bgp.ASN        `validate:"required"`
	LocalIdentifier bgp.Identifier `validate:"required"`
	PeerASN         bgp.ASN        `validate:"required"`
	PeerAddr        netip.Addr     `validate:"required"`
	PeerPort        uint16         `default:"179"`

	HoldTime         time.Duration `default:"180s"`
	ConnectRetryTime time.Duration `default:"120s" validate:"min=0"`

	Passive bool
	MD5Key  string `validate:"max=80"`
	TTL     int    `validate:"min=0,max=255"`
	GTSM    bool

	Families []bgp.Family `validate:"required,min=1"`
	AddPath  map[bgp.Family]bool
}

var validate = validator.New()

// ApplyDefaults fills in every zero-valued field with its `default` tag.
func ApplyDefaults(c *Config) error {
	return defaults.Set(c)
}

// Validate rejects a config that can't be started: a missing local
// identity, an impossible MD5 key length, a TTL out of range, or no
// negotiated families to propose.
func Validate(c *Config) error {
	return validate.Struct(c)
}
