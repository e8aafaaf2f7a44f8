package compare

import (
	"errors"
	"fmt"
)

// BlendMode names a compositing mode applied by the UI when rendering the comparison.
// It has no effect on the computed outputs.
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendDifference BlendMode = "difference"
	BlendLighten    BlendMode = "lighten"
	BlendDarken     BlendMode = "darken"
	BlendScreen     BlendMode = "screen"
	BlendMultiply   BlendMode = "multiply"
)

var ErrUnknownBlendMode = errors.New("unknown blend mode")

// BlendModes lists the selectable modes in menu order.
var BlendModes = []BlendMode{
	BlendNormal,
	BlendDifference,
	BlendLighten,
	BlendDarken,
	BlendScreen,
	BlendMultiply,
}

// blendModeAliases maps canvas composite operation labels sent by older clients onto listed modes.
var blendModeAliases = map[string]BlendMode{
	"lighter (add)": BlendLighten,
}

// ParseBlendMode accepts any listed mode or alias; the empty string means normal.
func ParseBlendMode(s string) (BlendMode, error) {
	if s == "" {
		return BlendNormal, nil
	}
	if m, ok := blendModeAliases[s]; ok {
		return m, nil
	}
	for _, m := range BlendModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBlendMode, s)
}
