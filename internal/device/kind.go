package device

import (
	"fmt"

	"github.com/nerrad567/abode-bridge/internal/abode"
)

// Kind is the closed set of device classes the bridge understands.
// KindUnsupported covers every other vendor type tag.
type Kind int

const (
	KindUnsupported Kind = iota
	KindSwitch
	KindDimmer
	KindLightBulb
	KindHue
)

// KindOf maps a vendor type tag to a Kind.
func KindOf(typeTag string) Kind {
	switch typeTag {
	case abode.TypeSwitch:
		return KindSwitch
	case abode.TypeDimmer:
		return KindDimmer
	case abode.TypeLightBulb:
		return KindLightBulb
	case abode.TypeHue:
		return KindHue
	default:
		return KindUnsupported
	}
}

// IsSupported reports whether the record's type tag is one of the four
// supported classes.
func IsSupported(d abode.Device) bool {
	return KindOf(d.TypeTag) != KindUnsupported
}

// IsBulb reports whether k is controlled through the integrations endpoint.
func (k Kind) IsBulb() bool {
	return k == KindLightBulb || k == KindHue
}

func (k Kind) String() string {
	switch k {
	case KindSwitch:
		return "switch"
	case KindDimmer:
		return "dimmer"
	case KindLightBulb:
		return "light_bulb"
	case KindHue:
		return "hue"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
