// Package scenario loads memory allocator scenarios from YAML files and runs
// them against the buddy allocator on top of a host memory arena.
//
// A scenario describes the memory map that a BOOTBOOT loader would report and
// a script of allocator operations:
//
//	name: split and merge
//	regions:
//	  - {base: 0x1000, length: 4K, type: free}
//	  - {base: 8K, length: 0x7fe000, type: used}
//	  - {base: 8M, length: 8M, type: free}
//	ops:
//	  - {op: alloc, count: 1, ref: a}
//	  - {op: release, ref: a}
//	  - {op: validate}
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/A1Liu/os/kernel/hal/bootboot"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidSize is returned for malformed size values.
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidScenario is returned when a scenario fails validation.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// Operation names understood by the runner.
const (
	OpAlloc    = "alloc"
	OpTry      = "try"
	OpZeroed   = "zeroed"
	OpRelease  = "release"
	OpMark     = "mark"
	OpValidate = "validate"
)

var entryTypes = map[string]bootboot.EntryType{
	"used": bootboot.EntryUsed,
	"free": bootboot.EntryFree,
	"acpi": bootboot.EntryACPI,
	"mmio": bootboot.EntryMMIO,
}

// Region is a memory map entry.
type Region struct {
	Base   Size   `yaml:"base" json:"base"`
	Length Size   `yaml:"length" json:"length"`
	Type   string `yaml:"type" json:"type"`
}

// End returns the address right after the region.
func (r Region) End() Size {
	return r.Base + r.Length
}

// EntryType returns the BOOTBOOT type of the region.
func (r Region) EntryType() bootboot.EntryType {
	return entryTypes[r.Type]
}

// Op is a single step of a scenario script.
//
// Allocation ops store the returned block under Ref. A release op either
// names a Ref or gives an explicit physical Addr and Count; mark ops always
// use Addr and Count.
type Op struct {
	Op     string `yaml:"op" json:"op"`
	Count  int    `yaml:"count,omitempty" json:"count,omitempty"`
	Ref    string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Addr   Size   `yaml:"addr,omitempty" json:"addr,omitempty"`
	Usable bool   `yaml:"usable,omitempty" json:"usable,omitempty"`
}

// Scenario is a memory map plus a script of allocator operations.
type Scenario struct {
	Name string `yaml:"name" json:"name"`

	// Arena optionally overrides the size of the host memory that backs
	// physical memory. It defaults to the end of the last free region.
	Arena Size `yaml:"arena,omitempty" json:"arena,omitempty"`

	Regions []Region `yaml:"regions" json:"regions"`
	Ops     []Op     `yaml:"ops" json:"ops"`
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario from YAML and validates it.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the memory map is ordered the way a loader reports it
// and that every op is well formed.
func (s *Scenario) Validate() error {
	if len(s.Regions) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidScenario)
	}

	for i, r := range s.Regions {
		if _, ok := entryTypes[r.Type]; !ok {
			return fmt.Errorf("%w: region %d: unknown type %q", ErrInvalidScenario, i, r.Type)
		}
		if r.Length == 0 || r.End() < r.Base {
			return fmt.Errorf("%w: region %d: invalid length 0x%x", ErrInvalidScenario, i, uint64(r.Length))
		}
		if r.Length&0xf != 0 {
			return fmt.Errorf("%w: region %d: length 0x%x is not a multiple of 16", ErrInvalidScenario, i, uint64(r.Length))
		}
		if i > 0 && r.Base < s.Regions[i-1].End() {
			return fmt.Errorf("%w: region %d overlaps or precedes region %d", ErrInvalidScenario, i, i-1)
		}
	}

	for i, op := range s.Ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	return nil
}

// Validate checks that op carries the fields its kind needs.
func (op Op) Validate() error {
	switch op.Op {
	case OpAlloc, OpTry, OpZeroed:
		if op.Ref == "" {
			return fmt.Errorf("%w: %s needs a ref", ErrInvalidScenario, op.Op)
		}
	case OpRelease:
		if op.Ref == "" && op.Count == 0 {
			return fmt.Errorf("%w: release needs a ref or a count", ErrInvalidScenario)
		}
	case OpMark:
		if op.Count <= 0 {
			return fmt.Errorf("%w: mark needs a positive count", ErrInvalidScenario)
		}
	case OpValidate:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, op.Op)
	}

	return nil
}

// FreeEnd returns the end address of the last free region.
func (s *Scenario) FreeEnd() Size {
	var end Size
	for _, r := range s.Regions {
		if r.Type == "free" && r.End() > end {
			end = r.End()
		}
	}
	return end
}
