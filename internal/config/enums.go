package config

import (
	"fmt"
	"strings"
)

// SwitchModel selects the antigenic switching algorithm applied at the end of
// every asexual cycle. The choice is global to a run.
type SwitchModel string

// Supported switching models.
const (
	SwitchRatePerParasite7Vars  SwitchModel = "RATE_PER_PARASITE_7VARS"
	SwitchRatePerParasite5Decay SwitchModel = "RATE_PER_PARASITE_5VARS_DECAYING"
	SwitchConstantRate2Vars     SwitchModel = "CONSTANT_SWITCH_RATE_2VARS"
)

var switchModels = []SwitchModel{SwitchRatePerParasite7Vars, SwitchRatePerParasite5Decay, SwitchConstantRate2Vars}

// UnmarshalText parses a switching model name (case-insensitive).
func (m *SwitchModel) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), switchModels)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Valid reports whether m names a supported model.
func (m SwitchModel) Valid() bool { return containsEnum(m, switchModels) }

// StrainModel selects how an infection's antigen repertoire is assigned.
type StrainModel string

// Supported strain models.
const (
	StrainNonRandom StrainModel = "FALCIPARUM_NONRANDOM_STRAIN"
	StrainRandom    StrainModel = "FALCIPARUM_RANDOM_STRAIN"
	StrainGenerator StrainModel = "FALCIPARUM_STRAIN_GENERATOR"
)

var strainModels = []StrainModel{StrainNonRandom, StrainRandom, StrainGenerator}

// UnmarshalText parses a strain model name (case-insensitive).
func (m *StrainModel) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), strainModels)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Valid reports whether m names a supported model.
func (m StrainModel) Valid() bool { return containsEnum(m, strainModels) }

// InnateVariation selects which innate immune parameter varies between hosts.
type InnateVariation string

// Supported innate immune variation types.
const (
	InnateNone                    InnateVariation = "NONE"
	InnatePyrogenicThreshold      InnateVariation = "PYROGENIC_THRESHOLD"
	InnateCytokineKilling         InnateVariation = "CYTOKINE_KILLING"
	InnatePyrogenicThresholdByAge InnateVariation = "PYROGENIC_THRESHOLD_VS_AGE"
)

var innateVariations = []InnateVariation{InnateNone, InnatePyrogenicThreshold, InnateCytokineKilling, InnatePyrogenicThresholdByAge}

// UnmarshalText parses an innate variation name (case-insensitive).
func (v *InnateVariation) UnmarshalText(text []byte) error {
	parsed, err := parseEnum(string(text), innateVariations)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Valid reports whether v names a supported variation type.
func (v InnateVariation) Valid() bool { return containsEnum(v, innateVariations) }

func parseEnum[T ~string](raw string, allowed []T) (T, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for _, a := range allowed {
		if string(a) == name {
			return a, nil
		}
	}
	var zero T
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return zero, fmt.Errorf("unknown value %q (allowed: %s)", raw, strings.Join(names, ", "))
}

func containsEnum[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
