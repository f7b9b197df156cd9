package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Size is a byte count or address that accepts unit suffixes in scenario
// files: "4K", "8M", "1G" as well as plain decimal or 0x-prefixed values.
type Size uint64

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"K", 10},
	{"M", 20},
	{"G", 30},
}

// ParseSize converts s into a Size.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidSize)
	}

	upper := strings.ToUpper(s)
	for _, unit := range sizeUnits {
		digits, ok := strings.CutSuffix(upper, unit.suffix+"B")
		if !ok {
			digits, ok = strings.CutSuffix(upper, unit.suffix)
		}
		if !ok {
			continue
		}

		v, err := strconv.ParseUint(strings.TrimSpace(digits), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
		}
		if v > (^uint64(0))>>unit.shift {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
		}
		return Size(v << unit.shift), nil
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return Size(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: %w: expected a scalar", value.Line, ErrInvalidSize)
	}

	parsed, err := ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler. Values are written in hex so that
// addresses stay readable.
func (s Size) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%x", uint64(s)), nil
}
