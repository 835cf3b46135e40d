package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ShiftPolicy carries the per-business thresholds used by the time clock.
type ShiftPolicy struct {
	RegularHours      time.Duration `yaml:"regular_hours"`
	MinShift          time.Duration `yaml:"min_shift"`
	MaxShift          time.Duration `yaml:"max_shift"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	EarlyClockInGrace time.Duration `yaml:"early_clock_in_grace"`
}

func DefaultPolicy() ShiftPolicy {
	return ShiftPolicy{
		RegularHours:      8 * time.Hour,
		MinShift:          60 * time.Minute,
		MaxShift:          16 * time.Hour,
		StaleAfter:        16 * time.Hour,
		EarlyClockInGrace: 15 * time.Minute,
	}
}

func (p ShiftPolicy) Validate() error {
	switch {
	case p.RegularHours <= 0:
		return errors.New("regular_hours must be positive")
	case p.MinShift <= 0:
		return errors.New("min_shift must be positive")
	case p.MaxShift < p.MinShift:
		return errors.New("max_shift must not be shorter than min_shift")
	case p.StaleAfter <= 0:
		return errors.New("stale_after must be positive")
	}
	return nil
}

// PolicySet resolves the policy for a business, falling back to Default.
type PolicySet struct {
	Default    ShiftPolicy           `yaml:"default"`
	Businesses map[int64]ShiftPolicy `yaml:"businesses"`
}

func (s PolicySet) For(businessID int64) ShiftPolicy {
	if p, ok := s.Businesses[businessID]; ok {
		return p
	}
	return s.Default
}

func (s PolicySet) Validate() error {
	if err := s.Default.Validate(); err != nil {
		return fmt.Errorf("default policy: %w", err)
	}
	for id, p := range s.Businesses {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("business %d policy: %w", id, err)
		}
	}
	return nil
}

// policyFile mirrors PolicySet with optional fields so a business entry only
// needs the values it overrides.
type policyFile struct {
	Default    rawPolicy           `yaml:"default"`
	Businesses map[int64]rawPolicy `yaml:"businesses"`
}

type rawPolicy struct {
	RegularHours      *string `yaml:"regular_hours"`
	MinShift          *string `yaml:"min_shift"`
	MaxShift          *string `yaml:"max_shift"`
	StaleAfter        *string `yaml:"stale_after"`
	EarlyClockInGrace *string `yaml:"early_clock_in_grace"`
}

func (r rawPolicy) apply(base ShiftPolicy) (ShiftPolicy, error) {
	fields := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"regular_hours", r.RegularHours, &base.RegularHours},
		{"min_shift", r.MinShift, &base.MinShift},
		{"max_shift", r.MaxShift, &base.MaxShift},
		{"stale_after", r.StaleAfter, &base.StaleAfter},
		{"early_clock_in_grace", r.EarlyClockInGrace, &base.EarlyClockInGrace},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		d, err := time.ParseDuration(*f.raw)
		if err != nil {
			return base, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return base, nil
}

// LoadPolicyFile reads a YAML policy file layered over defaults.
func LoadPolicyFile(path string, defaults ShiftPolicy) (PolicySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicySet{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data, defaults)
}

func ParsePolicies(data []byte, defaults ShiftPolicy) (PolicySet, error) {
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return PolicySet{}, fmt.Errorf("parse policy file: %w", err)
	}
	def, err := raw.Default.apply(defaults)
	if err != nil {
		return PolicySet{}, fmt.Errorf("default policy: %w", err)
	}
	set := PolicySet{Default: def, Businesses: make(map[int64]ShiftPolicy, len(raw.Businesses))}
	for id, r := range raw.Businesses {
		p, err := r.apply(def)
		if err != nil {
			return PolicySet{}, fmt.Errorf("business %d policy: %w", id, err)
		}
		set.Businesses[id] = p
	}
	return set, nil
}

// MarshalYAML renders durations as strings so the dump round-trips through ParsePolicies.
func (p ShiftPolicy) MarshalYAML() (any, error) {
	return map[string]string{
		"regular_hours":        p.RegularHours.String(),
		"min_shift":            p.MinShift.String(),
		"max_shift":            p.MaxShift.String(),
		"stale_after":          p.StaleAfter.String(),
		"early_clock_in_grace": p.EarlyClockInGrace.String(),
	}, nil
}
