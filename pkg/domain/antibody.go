package domain

import "fmt"

// AntibodyType identifies the antigen family an antibody variant targets.
type AntibodyType string

// Supported antibody types. Each type owns its own variant index space.
const (
	// AntibodyCSP targets the circumsporozoite protein on sporozoites.
	AntibodyCSP AntibodyType = "csp"
	// AntibodyMSP1 targets merozoite surface protein 1 at schizont rupture.
	AntibodyMSP1 AntibodyType = "msp1"
	// AntibodyPfEMP1Minor targets shared, weakly antigenic PfEMP1 epitopes.
	AntibodyPfEMP1Minor AntibodyType = "pfemp1_minor"
	// AntibodyPfEMP1Major targets the full variant-specific PfEMP1 protein.
	AntibodyPfEMP1Major AntibodyType = "pfemp1_major"
)

// AntibodyTypes lists every antibody type in a stable order.
var AntibodyTypes = []AntibodyType{AntibodyCSP, AntibodyMSP1, AntibodyPfEMP1Minor, AntibodyPfEMP1Major}

// ParseAntibodyType converts a persisted name into an AntibodyType.
func ParseAntibodyType(name string) (AntibodyType, error) {
	for _, t := range AntibodyTypes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown antibody type %q", name)
}

// AntibodyKey uniquely identifies an antibody variant within one host.
type AntibodyKey struct {
	Type    AntibodyType `json:"type"`
	Variant int          `json:"variant"`
}

func (k AntibodyKey) String() string {
	return fmt.Sprintf("%s/%d", k.Type, k.Variant)
}

// AntibodySnapshot captures the persisted state of one antibody variant.
type AntibodySnapshot struct {
	Type           AntibodyType `json:"type"`
	Variant        int          `json:"variant"`
	Capacity       float64      `json:"capacity"`
	Concentration  float64      `json:"concentration"`
	AntigenCount   int64        `json:"antigen_count"`
	AntigenPresent bool         `json:"antigen_present"`
}

// Key returns the registry key of the snapshot.
func (s AntibodySnapshot) Key() AntibodyKey {
	return AntibodyKey{Type: s.Type, Variant: s.Variant}
}
