package host

import (
	"falciparum/internal/config"
	"falciparum/internal/immune"
	"falciparum/internal/infection"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// Snapshot returns the persisted form of the host and everything it owns.
func (h *Host) Snapshot() domain.HostSnapshot {
	snap := domain.HostSnapshot{
		ID:               h.id,
		MonteCarloWeight: h.weight,
		Dead:             h.dead,
		NextInfectionID:  h.nextInfectionID,
		Infectiousness:   h.infectiousness,
		Immune:           h.immune.Snapshot(),
		Infections:       make([]domain.InfectionSnapshot, 0, len(h.infections)),
		Gametocytes:      h.GametocytesByStrain(),
		Diagnostics:      h.diagnostics,
		Symptoms:         h.immune.Symptoms(),
	}
	for _, inf := range h.infections {
		snap.Infections = append(snap.Infections, inf.Snapshot())
	}
	return snap
}

// Restore rebuilds a host from a snapshot. The immune state is restored
// before the infections so their antibody handles resolve to the restored
// variants. Settings supply the collaborators; their ID, age and weight are
// taken from the snapshot instead.
func Restore(p *config.Params, snap domain.HostSnapshot, s Settings) (*Host, error) {
	if s.Events == nil {
		return nil, &domain.CapabilityError{Capability: "EventSink", Caller: "host.Restore"}
	}
	s.ID = snap.ID
	s.MonteCarloWeight = snap.MonteCarloWeight
	// The innate draw is discarded; Restore overwrites it.
	st, err := immune.New(p, s.Events, random.New(0), immune.Settings{HostID: snap.ID, Logger: s.Logger})
	if err != nil {
		return nil, err
	}
	if err := st.Restore(snap.Immune); err != nil {
		return nil, err
	}
	st.RestoreSymptoms(snap.Symptoms)
	h := newHost(p, st, s)
	h.dead = snap.Dead
	h.nextInfectionID = snap.NextInfectionID
	h.infectiousness = snap.Infectiousness
	h.diagnostics = snap.Diagnostics
	for _, is := range snap.Infections {
		inf, err := infection.Restore(p, st, is, s.Logger)
		if err != nil {
			return nil, err
		}
		h.infections = append(h.infections, inf)
	}
	for _, g := range snap.Gametocytes {
		h.reservoir[g.Strain] = &gametocytePool{male: g.Male, female: g.Female}
	}
	return h, nil
}
