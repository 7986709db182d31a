package immune

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"falciparum/internal/config"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// fixedSource returns a constant uniform draw and neutral values otherwise.
type fixedSource struct{ u float64 }

func (f fixedSource) Uniform() float64                { return f.u }
func (fixedSource) Poisson(mean float64) int64        { return int64(mean) }
func (fixedSource) Gaussian() float64                 { return 0 }
func (fixedSource) Normal(mu, _ float64) float64      { return mu }
func (fixedSource) Binomial(n int64, p float64) int64 { return int64(float64(n) * p) }
func (fixedSource) Intn(int) int                      { return 0 }

type recordingSink struct{ events []domain.Event }

func (r *recordingSink) Broadcast(e domain.Event) { r.events = append(r.events, e) }

func (r *recordingSink) count(kind domain.EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newAdult(t *testing.T) (*State, *recordingSink, *config.Params) {
	t.Helper()
	p := config.Default()
	sink := &recordingSink{}
	s, err := New(&p, sink, random.New(1), Settings{HostID: "h1", AgeDays: 30 * 365})
	if err != nil {
		t.Fatalf("new immune state: %v", err)
	}
	return s, sink, &p
}

func TestNewRequiresCapabilities(t *testing.T) {
	p := config.Default()
	_, err := New(&p, nil, random.New(1), Settings{})
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error, got %v", err)
	}
	var capErr *domain.CapabilityError
	if !errors.As(err, &capErr) || capErr.Capability != "EventSink" || capErr.Caller != "immune.New" {
		t.Fatalf("expected EventSink capability detail, got %v", err)
	}
	if _, err := New(&p, domain.DiscardEvents, nil, Settings{}); !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error for missing rng, got %v", err)
	}
}

func TestBloodVolumeScalesWithAge(t *testing.T) {
	p := config.Default()
	newborn, err := New(&p, domain.DiscardEvents, random.New(1), Settings{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	adult, _, _ := newAdult(t)
	if math.Abs(newborn.InvMicrolitersBlood()-1/(0.3e6)) > 1e-15 {
		t.Fatalf("unexpected newborn blood volume %g", 1/newborn.InvMicrolitersBlood())
	}
	if math.Abs(adult.InvMicrolitersBlood()-1/(5e6)) > 1e-15 {
		t.Fatalf("unexpected adult blood volume %g", 1/adult.InvMicrolitersBlood())
	}
	if adult.RBCAvailability() != 1 {
		t.Fatalf("expected full rbc availability at birth of state, got %g", adult.RBCAvailability())
	}
	if math.Abs(adult.Hemoglobin()-15) > 1e-9 {
		t.Fatalf("expected 15 g/dL, got %g", adult.Hemoglobin())
	}
}

func TestCombineWithZeroPartials(t *testing.T) {
	got := Combine(0, 0, 0)
	if got.Total != 0 || got.Anemia != 0 || got.Parasites != 0 || got.Fever != 0 {
		t.Fatalf("expected all zero, got %+v", got)
	}
	if got.Cause(0) != domain.SevereCaseNone {
		t.Fatal("no cause without probability")
	}
}

func TestCombineAttribution(t *testing.T) {
	got := Combine(0.1, 0.3, 0)
	if math.Abs(got.Total-(1-0.9*0.7)) > 1e-12 {
		t.Fatalf("unexpected total %g", got.Total)
	}
	if math.Abs(got.Anemia-0.25) > 1e-12 || math.Abs(got.Parasites-0.75) > 1e-12 || got.Fever != 0 {
		t.Fatalf("unexpected fractions %+v", got)
	}
	if c := got.Cause(0.1 * got.Total); c != domain.SevereCaseAnemia {
		t.Fatalf("expected anemia, got %q", c)
	}
	if c := got.Cause(0.5 * got.Total); c != domain.SevereCaseParasites {
		t.Fatalf("expected parasites, got %q", c)
	}
}

func TestClinicalCaseLifecycle(t *testing.T) {
	s, sink, p := newAdult(t)
	rng := fixedSource{u: 0.5}

	s.cytokines = p.ClinicalFeverThresholdHigh + 0.5
	for i := 0; i < 3; i++ {
		if s.UpdateClinical(rng, 1, 1) {
			t.Fatal("no death expected without parasites")
		}
	}
	if n := sink.count(domain.EventNewClinicalCase); n != 1 {
		t.Fatalf("expected one clinical case event, got %d", n)
	}
	if s.CumulativeDaysClinical() != 3 {
		t.Fatalf("expected 3 clinical days, got %g", s.CumulativeDaysClinical())
	}
	if s.MaxFever() != s.cytokines {
		t.Fatalf("expected max fever tracked, got %g", s.MaxFever())
	}
	if len(s.Symptoms()) != 1 || s.Symptoms()[0] != domain.SymptomClinicalDisease {
		t.Fatalf("expected clinical symptom flag, got %v", s.Symptoms())
	}
	if sink.events[0].HostID != "h1" {
		t.Fatalf("expected host id on events, got %q", sink.events[0].HostID)
	}

	s.cytokines = 0
	for i := 0; i < int(p.MinDaysBetweenClinicalIncidents)+1; i++ {
		s.UpdateClinical(rng, 1, 1)
	}
	if s.CumulativeDaysClinical() != 0 || s.MaxFever() != 0 {
		t.Fatalf("expected counters reset after quiet period, got days=%g max=%g", s.CumulativeDaysClinical(), s.MaxFever())
	}

	s.cytokines = p.ClinicalFeverThresholdHigh + 0.5
	s.UpdateClinical(rng, 1, 1)
	if n := sink.count(domain.EventNewClinicalCase); n != 2 {
		t.Fatalf("expected a second distinct clinical case, got %d", n)
	}
}

func TestLowFeverKeepsEpisodeOpen(t *testing.T) {
	s, sink, p := newAdult(t)
	rng := fixedSource{u: 0.5}
	s.cytokines = p.ClinicalFeverThresholdHigh + 1
	s.UpdateClinical(rng, 1, 1)
	s.cytokines = (p.ClinicalFeverThresholdLow + p.ClinicalFeverThresholdHigh) / 2
	for i := 0; i < 30; i++ {
		s.UpdateClinical(rng, 1, 1)
	}
	s.cytokines = p.ClinicalFeverThresholdHigh + 1
	s.UpdateClinical(rng, 1, 1)
	if n := sink.count(domain.EventNewClinicalCase); n != 1 {
		t.Fatalf("fever above the low threshold should extend the episode, got %d cases", n)
	}
}

func TestSevereParasitemiaAndDeath(t *testing.T) {
	s, sink, _ := newAdult(t)
	s.SetParasiteDensity(5e6)

	if !s.UpdateClinical(fixedSource{u: 0.5}, 1, 1) {
		t.Fatal("expected death at extreme parasitemia")
	}
	if n := sink.count(domain.EventNewSevereCase); n != 1 {
		t.Fatalf("expected one severe case, got %d", n)
	}
	if s.SevereCaseType() != domain.SevereCaseParasites {
		t.Fatalf("expected parasite attribution, got %q", s.SevereCaseType())
	}
	if sink.events[len(sink.events)-1].Cause != domain.SevereCaseParasites {
		t.Fatalf("expected cause on event, got %+v", sink.events)
	}

	survivor, _, _ := newAdult(t)
	survivor.SetParasiteDensity(5e6)
	if survivor.UpdateClinical(fixedSource{u: 0.5}, 1, 0) {
		t.Fatal("zero mortality multiplier must prevent death")
	}
}

func TestSevereAnemiaCounter(t *testing.T) {
	s, sink, _ := newAdult(t)
	s.RemoveRBCs(s.RBCCapacity() * 8 / 10)
	s.SetParasiteDensity(10)
	if hb := s.Hemoglobin(); hb >= 5 {
		t.Fatalf("expected anemic host, hb=%g", hb)
	}

	if s.UpdateClinical(fixedSource{u: 0.99}, 1, 1) {
		t.Fatal("unexpected death")
	}
	if sink.count(domain.EventSevereAnemia) != 1 || s.CumulativeDaysSevereAnemia() != 1 {
		t.Fatalf("expected severe anemia incident, events=%v days=%g", sink.events, s.CumulativeDaysSevereAnemia())
	}
	if sink.count(domain.EventNewSevereCase) != 0 {
		t.Fatal("draw above severe probability must not raise a severe case")
	}
}

func TestSevereAnemiaEpisodeCountedOnce(t *testing.T) {
	s, sink, p := newAdult(t)
	s.RemoveRBCs(s.RBCCapacity() * 8 / 10)
	s.SetParasiteDensity(10)
	rng := fixedSource{u: 0.99}

	for day := 0; day < 30; day++ {
		if s.UpdateClinical(rng, 1, 1) {
			t.Fatalf("unexpected death on day %d", day)
		}
	}
	if n := sink.count(domain.EventSevereAnemia); n != 1 {
		t.Fatalf("expected one severe anemia event over an afebrile episode, got %d", n)
	}
	if s.CumulativeDaysSevereAnemia() != 30 {
		t.Fatalf("expected 30 severe anemia days, got %g", s.CumulativeDaysSevereAnemia())
	}

	s.rbcCount = s.rbcCapacity
	for i := 0; i < int(p.MinDaysBetweenClinicalIncidents)+1; i++ {
		s.UpdateClinical(rng, 1, 1)
	}
	if s.CumulativeDaysSevereAnemia() != 0 {
		t.Fatalf("expected counter reset after recovery, got %g", s.CumulativeDaysSevereAnemia())
	}
	s.RemoveRBCs(s.RBCCapacity() * 8 / 10)
	s.UpdateClinical(rng, 1, 1)
	if n := sink.count(domain.EventSevereAnemia); n != 2 {
		t.Fatalf("expected a second anemia episode after recovery, got %d", n)
	}
}

func TestSevereAnemiaWithoutParasites(t *testing.T) {
	s, sink, _ := newAdult(t)
	s.RemoveRBCs(s.RBCCapacity() * 8 / 10)
	s.SetParasiteDensity(0)

	if s.UpdateClinical(fixedSource{u: 0.99}, 1, 1) {
		t.Fatal("unexpected death")
	}
	if sink.count(domain.EventSevereAnemia) != 1 || s.CumulativeDaysSevereAnemia() != 1 {
		t.Fatalf("expected anemia counted after clearance, events=%v days=%g", sink.events, s.CumulativeDaysSevereAnemia())
	}
	if got := s.Symptoms(); len(got) != 1 || got[0] != domain.SymptomSevereAnemia {
		t.Fatalf("expected severe anemia symptom, got %v", got)
	}
}

func TestRBCRecoveryAfterLoss(t *testing.T) {
	s, _, _ := newAdult(t)
	s.RemoveRBCs(s.RBCCapacity() / 2)
	before := s.RBCCount()
	s.Update(1)
	if s.RBCCount() <= before {
		t.Fatalf("expected erythropoiesis to raise rbc count from %d, got %d", before, s.RBCCount())
	}
	if s.RBCCount() > s.RBCCapacity() {
		t.Fatal("rbc count exceeded capacity")
	}
	s.RemoveRBCs(math.MaxInt64)
	if s.RBCCount() != 0 {
		t.Fatalf("expected clamp to zero, got %d", s.RBCCount())
	}
}

func TestCytokinesRelaxTowardStimulation(t *testing.T) {
	s, _, p := newAdult(t)
	v, err := s.RegisterAntibody(domain.AntibodyPfEMP1Major, 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	antigen := int64(2 * p.PyrogenicThreshold / s.InvMicrolitersBlood())
	v.IncreaseAntigenCount(antigen)

	s.Update(10)

	want := p.MaxFever * 2 / (p.MaxFever + 2)
	if math.Abs(s.Fever()-want) > 1e-3 {
		t.Fatalf("expected fever near %g, got %g", want, s.Fever())
	}
	if math.Abs(s.FeverCelsius()-(37+want)) > 1e-3 {
		t.Fatalf("expected %gC, got %g", 37+want, s.FeverCelsius())
	}
	if v.AntigenPresent() {
		t.Fatal("antigen counters should reset after the step")
	}
}

func TestFeverIsBounded(t *testing.T) {
	s, _, p := newAdult(t)
	v, err := s.RegisterAntibody(domain.AntibodyPfEMP1Major, 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 3; i++ {
		v.IncreaseAntigenCount(5e12)
		s.Update(1)
		if s.Fever() > p.MaxFever {
			t.Fatalf("fever %g above ceiling %g", s.Fever(), p.MaxFever)
		}
		if s.FeverCelsius() > 37+p.MaxFever {
			t.Fatalf("temperature %gC above %gC", s.FeverCelsius(), 37+p.MaxFever)
		}
	}
	if s.Fever() < p.MaxFever*0.8 {
		t.Fatalf("expected fever near the ceiling under extreme stimulation, got %g", s.Fever())
	}
	if saturatingFever(0.01, p.MaxFever) < 0.0099 {
		t.Fatal("low stimulation should map almost linearly to fever")
	}
}

func TestMaternalAntibodiesDecay(t *testing.T) {
	p := config.Default()
	s, err := New(&p, domain.DiscardEvents, random.New(1), Settings{MaternalAntibodyStrength: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Update(100)
	want := math.Exp(-p.MaternalAntibodyDecayRate * 100)
	if math.Abs(s.MaternalAntibodyStrength()-want) > 1e-12 {
		t.Fatalf("expected %g, got %g", want, s.MaternalAntibodyStrength())
	}
	if math.Abs(s.MaternalAntibody()-want*p.MaternalAntibodyProtection) > 1e-12 {
		t.Fatalf("unexpected maternal killing term %g", s.MaternalAntibody())
	}
}

func TestInnateVariationScalesThreshold(t *testing.T) {
	p := config.Default()
	p.InnateImmuneVariationType = config.InnatePyrogenicThreshold
	p.InnateImmuneDistributionSigma = 0.5
	a, err := New(&p, domain.DiscardEvents, random.New(1), Settings{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(&p, domain.DiscardEvents, random.New(2), Settings{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.PyrogenicThreshold() == b.PyrogenicThreshold() {
		t.Fatal("expected hosts to differ in pyrogenic threshold")
	}
	if a.FeverKillRate() != p.FeverIRBCKillRate {
		t.Fatal("fever kill rate should not vary under threshold variation")
	}
}

func TestFractionWithAntibodies(t *testing.T) {
	s, _, p := newAdult(t)
	for i := 0; i < 10; i++ {
		v, err := s.RegisterAntibody(domain.AntibodyPfEMP1Major, i)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if i < 5 {
			v.SetCapacity(0.2)
		}
	}
	want := 5 / float64(p.FalciparumPfEMP1Variants)
	if got := s.FractionWithAntibodies(domain.AntibodyPfEMP1Major); got != want {
		t.Fatalf("expected %g, got %g", want, got)
	}
	if got := s.FractionWithAntibodies(domain.AntibodyMSP1); got != 0 {
		t.Fatalf("expected no msp antibodies, got %g", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s, _, p := newAdult(t)
	v, _ := s.RegisterAntibody(domain.AntibodyMSP1, 3)
	v.SetCapacity(0.6)
	v.SetConcentration(0.2)
	s.cytokines = 2
	s.SetParasiteDensity(1200)
	s.UpdateClinical(fixedSource{u: 0.99}, 1, 1)
	s.RemoveRBCs(1000)

	snap := s.Snapshot()
	restored, err := New(p, domain.DiscardEvents, random.New(5), Settings{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	again := restored.Snapshot()
	if len(again.Antibodies) != 1 {
		t.Fatalf("antibodies not restored: %+v", again.Antibodies)
	}
	if !reflect.DeepEqual(snap, again) {
		t.Fatalf("snapshot mismatch:\n got %+v\nwant %+v", again, snap)
	}
	handle, err := restored.RegisterAntibody(domain.AntibodyMSP1, 3)
	if err != nil || handle.Capacity() != 0.6 || handle.Concentration() != 0.2 {
		t.Fatalf("re-registration should resolve to restored variant, got %+v err=%v", handle.Snapshot(), err)
	}
}
