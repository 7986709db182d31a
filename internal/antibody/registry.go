package antibody

import (
	"sort"

	"falciparum/internal/config"
	"falciparum/pkg/domain"
)

// Registry owns a host's antibody variants. Variants are created on first
// reference and live until the host is discarded; callers hold the returned
// pointers as non-owning handles.
type Registry struct {
	params   *config.Params
	variants map[domain.AntibodyKey]*Variant
	order    []*Variant
}

// NewRegistry constructs an empty registry.
func NewRegistry(p *config.Params) *Registry {
	return &Registry{params: p, variants: make(map[domain.AntibodyKey]*Variant)}
}

// VariantCount is the number of distinct variants configured for an antigen
// type.
func VariantCount(p *config.Params, t domain.AntibodyType) int {
	switch t {
	case domain.AntibodyCSP:
		return 1
	case domain.AntibodyMSP1:
		return p.FalciparumMSPVariants
	case domain.AntibodyPfEMP1Minor:
		return p.FalciparumNonspecificVariants * domain.MinorEpitopeVariantsPerSet
	case domain.AntibodyPfEMP1Major:
		return p.FalciparumPfEMP1Variants
	}
	return 0
}

// Register returns the variant for (t, index), creating it on first use.
// Re-registering an existing pair returns the same instance.
func (r *Registry) Register(t domain.AntibodyType, index int) (*Variant, error) {
	key := domain.AntibodyKey{Type: t, Variant: index}
	if v, ok := r.variants[key]; ok {
		return v, nil
	}
	if n := VariantCount(r.params, t); index < 0 || index >= n {
		return nil, domain.Invariantf("antibody registry", "%s variant %d outside [0, %d)", t, index, n)
	}
	v := newVariant(r.params, t, index)
	r.variants[key] = v
	r.order = append(r.order, v)
	return v, nil
}

// Lookup returns a registered variant without creating it.
func (r *Registry) Lookup(t domain.AntibodyType, index int) (*Variant, bool) {
	v, ok := r.variants[domain.AntibodyKey{Type: t, Variant: index}]
	return v, ok
}

// Len reports the number of registered variants.
func (r *Registry) Len() int { return len(r.order) }

// Each calls fn for every variant in registration order.
func (r *Registry) Each(fn func(*Variant)) {
	for _, v := range r.order {
		fn(v)
	}
}

// Update advances capacity and then concentration of every variant by dt.
func (r *Registry) Update(dt, invMicrolitersBlood float64) {
	for _, v := range r.order {
		v.UpdateCapacity(dt, invMicrolitersBlood)
		v.UpdateConcentration(dt)
	}
}

// StimulateCytokines sums the innate stimulation of every variant, scaled by
// the weight of its antigen type.
func (r *Registry) StimulateCytokines(invMicrolitersBlood float64, weight func(domain.AntibodyType) float64) float64 {
	var total float64
	for _, v := range r.order {
		if w := weight(v.kind); w > 0 {
			total += w * v.StimulateCytokines(invMicrolitersBlood)
		}
	}
	return total
}

// ResetCounters clears per-step antigen exposure on every variant.
func (r *Registry) ResetCounters() {
	for _, v := range r.order {
		v.ResetCounters()
	}
}

// CountWithCapacity returns how many variants of type t hold capacity above
// min.
func (r *Registry) CountWithCapacity(t domain.AntibodyType, min float64) int {
	n := 0
	for _, v := range r.order {
		if v.kind == t && v.capacity > min {
			n++
		}
	}
	return n
}

// Snapshots returns every variant ordered by type and index.
func (r *Registry) Snapshots() []domain.AntibodySnapshot {
	out := make([]domain.AntibodySnapshot, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, v.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Variant < out[j].Variant
	})
	return out
}

// Restore rebuilds the registry from snapshots, replacing any current state.
func (r *Registry) Restore(snaps []domain.AntibodySnapshot) error {
	r.variants = make(map[domain.AntibodyKey]*Variant, len(snaps))
	r.order = nil
	for _, s := range snaps {
		v, err := r.Register(s.Type, s.Variant)
		if err != nil {
			return err
		}
		v.capacity = s.Capacity
		v.concentration = s.Concentration
		v.antigenCount = s.AntigenCount
		v.antigenPresent = s.AntigenPresent
	}
	return nil
}
