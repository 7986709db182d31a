package host

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"falciparum/internal/config"
	"falciparum/internal/infection"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

type eventLog struct{ events []domain.Event }

func (l *eventLog) Broadcast(e domain.Event) { l.events = append(l.events, e) }

func (l *eventLog) count(kind domain.EventKind) int {
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fixedDrugs infection.DrugKillRates

func (d fixedDrugs) KillRates() infection.DrugKillRates { return infection.DrugKillRates(d) }

var testStrain = domain.StrainIdentity{Clade: 1, Genome: 7}

func newAdult(t *testing.T, p *config.Params) (*Host, *eventLog) {
	t.Helper()
	log := &eventLog{}
	h, err := New(p, random.New(1), Settings{ID: "h1", AgeDays: 30 * 365, Events: log})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	return h, log
}

func TestNewRequiresEventSink(t *testing.T) {
	p := config.Default()
	if _, err := New(&p, random.New(1), Settings{ID: "h1"}); !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if _, err := Restore(&p, domain.HostSnapshot{}, Settings{}); !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error on restore, got %v", err)
	}
}

func TestChallengeSeedsHepatocytesAndStimulatesCSP(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	ok, err := h.Challenge(random.New(2), testStrain, 100)
	if err != nil || !ok {
		t.Fatalf("challenge: ok=%v err=%v", ok, err)
	}
	infs := h.Infections()
	if len(infs) != 1 || infs[0].Hepatocytes() != 25 {
		t.Fatalf("expected one infection with 25 hepatocytes, got %d infections", len(infs))
	}
	if infs[0].Strain() != testStrain {
		t.Fatalf("unexpected strain %v", infs[0].Strain())
	}
	csp, ok := h.Immune().Antibodies().Lookup(domain.AntibodyCSP, 0)
	if !ok || csp.AntigenCount() != 100 {
		t.Fatal("expected CSP antibody to see the sporozoites")
	}
}

func TestCSPBoostReducesLiverInfection(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	if err := h.BoostAntibody(domain.AntibodyCSP, 0, p.AntibodyCSPKillingThreshold); err != nil {
		t.Fatalf("boost: %v", err)
	}
	if _, err := h.Challenge(random.New(2), testStrain, 100); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if got := h.Infections()[0].Hepatocytes(); got != 13 {
		t.Fatalf("expected half the sporozoites neutralised, got %d hepatocytes", got)
	}
}

func TestCSPKillingCurve(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	if h.cspKilling(0) != 0 {
		t.Fatal("no killing without antibody")
	}
	if got := h.cspKilling(p.AntibodyCSPKillingThreshold); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 at threshold, got %g", got)
	}
	if h.cspKilling(10*p.AntibodyCSPKillingThreshold) <= 0.9 {
		t.Fatal("killing should saturate well above threshold")
	}
}

func TestChallengeRespectsInfectionLimit(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	rng := random.New(3)
	for i := 0; i < p.MaxIndividualInfections; i++ {
		if ok, err := h.ChallengeWithHepatocytes(rng, testStrain, 5); err != nil || !ok {
			t.Fatalf("challenge %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := h.ChallengeWithHepatocytes(rng, testStrain, 5)
	if err != nil || ok {
		t.Fatalf("expected challenge beyond the limit to be ignored, ok=%v err=%v", ok, err)
	}
	if ok, _ := h.ChallengeWithHepatocytes(rng, testStrain, 0); ok {
		t.Fatal("zero hepatocytes must not start an infection")
	}
	ids := map[uint64]bool{}
	for _, inf := range h.Infections() {
		ids[inf.ID()] = true
	}
	if len(ids) != p.MaxIndividualInfections {
		t.Fatal("infection ids must be unique within a host")
	}
}

func TestUpdateRaisesClinicalCase(t *testing.T) {
	p := config.Default()
	p.AntibodyCapacityGrowthRate = 0
	p.MaxMSP1AntibodyGrowthRate = 0
	h, log := newAdult(t, &p)
	h.SetMortalityMultiplier(0)
	rng := random.New(4)
	if _, err := h.ChallengeWithHepatocytes(rng, testStrain, 10); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	sawParasites := false
	for day := 0; day < 40 && log.count(domain.EventNewClinicalCase) == 0; day++ {
		if err := h.Update(rng, 1); err != nil {
			t.Fatalf("update day %d: %v", day, err)
		}
		if h.ParasiteDensity() > 0 {
			sawParasites = true
		}
		im := h.Immune()
		if im.RBCCount() < 0 || im.RBCCount() > im.RBCCapacity() {
			t.Fatalf("rbc count %d outside [0, %d]", im.RBCCount(), im.RBCCapacity())
		}
	}
	if !sawParasites {
		t.Fatal("expected blood-stage parasites after the liver stage")
	}
	if log.count(domain.EventNewClinicalCase) != 1 {
		t.Fatalf("expected one clinical case, events=%v", log.events)
	}
	for _, e := range log.events {
		if e.HostID != "h1" {
			t.Fatalf("event not stamped with host id: %+v", e)
		}
	}
}

func TestClearedInfectionIsRemoved(t *testing.T) {
	p := config.Default()
	h, log := newAdult(t, &p)
	h.SetDrugEffects(fixedDrugs{Hepatocyte: 1000})
	rng := random.New(5)
	if _, err := h.ChallengeWithHepatocytes(rng, testStrain, 5); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if err := h.Update(rng, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if h.InfectionCount() != 0 {
		t.Fatalf("expected cleared infection removed, %d remain", h.InfectionCount())
	}
	if log.count(domain.EventInfectionClear) != 1 {
		t.Fatalf("expected one clearance event, events=%v", log.events)
	}
}

func TestHostDiesWhenRBCsExhausted(t *testing.T) {
	p := config.Default()
	h, log := newAdult(t, &p)
	rng := random.New(6)
	if _, err := h.ChallengeWithHepatocytes(rng, testStrain, 5); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	h.Immune().RemoveRBCs(h.Immune().RBCCount())
	if err := h.Update(rng, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !h.Dead() || h.InfectionCount() != 0 {
		t.Fatal("expected host death with infections released")
	}
	if log.count(domain.EventHostDeath) != 1 {
		t.Fatalf("expected one death event, events=%v", log.events)
	}
	if err := h.Update(rng, 1); err != nil || log.count(domain.EventHostDeath) != 1 {
		t.Fatal("dead hosts must not be stepped again")
	}
	if ok, _ := h.ChallengeWithHepatocytes(rng, testStrain, 5); ok {
		t.Fatal("dead hosts cannot be infected")
	}
}

func TestGametocyteReservoirDecays(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	other := domain.StrainIdentity{Clade: 0, Genome: 3}
	h.reservoir[testStrain] = &gametocytePool{male: 100, female: 400}
	h.reservoir[other] = &gametocytePool{male: 0.2, female: 0.3}

	h.collectGametocytes(p.MatureGametocyteHalfLife)

	male, female := h.MatureGametocytes()
	if math.Abs(male-50) > 1e-9 || math.Abs(female-200) > 1e-9 {
		t.Fatalf("expected one half-life of decay, got %g/%g", male, female)
	}
	byStrain := h.GametocytesByStrain()
	if len(byStrain) != 1 || byStrain[0].Strain != testStrain {
		t.Fatalf("expected the sub-unit pool dropped, got %+v", byStrain)
	}
}

func TestInfectiousness(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	h.reservoir[testStrain] = &gametocytePool{male: 0, female: 1e7}
	if h.computeInfectiousness() != 0 {
		t.Fatal("infectiousness needs male gametocytes")
	}
	h.reservoir[testStrain].male = 1e6
	density := 1e7 * h.InvMicrolitersBlood()
	want := 1 - math.Exp(-density*p.BaseGametocyteMosquitoSurvivalRate)
	if got := h.computeInfectiousness(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("infectiousness %g, want %g", got, want)
	}
}

func TestDiagnostics(t *testing.T) {
	p := config.Default()
	h, _ := newAdult(t, &p)
	rng := random.New(7)
	if d, pos := h.BloodSmearParasites(rng); d != 0 || pos {
		t.Fatalf("uninfected host read %g positive=%v", d, pos)
	}
	h.Immune().SetParasiteDensity(1000)
	d, pos := h.BloodSmearParasites(rng)
	if !pos || math.Abs(d-1000) > 500 {
		t.Fatalf("smear read %g positive=%v", d, pos)
	}
	nd, _ := h.NovelDiagnostic(rng)
	if h.Diagnostics().SmearParasiteDensity != d || h.Diagnostics().NovelParasiteDensity != nd {
		t.Fatal("last readings must be stored")
	}
	h.reservoir[testStrain] = &gametocytePool{male: 1e9, female: 1e9}
	if _, pos := h.BloodSmearGametocytes(rng); !pos {
		t.Fatal("dense gametocytaemia should be detected")
	}
}

func TestSnapshotRestoreContinuesIdentically(t *testing.T) {
	p := config.Default()
	p.MalariaStrains = config.StrainRandom
	h, _ := newAdult(t, &p)
	rng := random.New(8)
	for i := 0; i < 2; i++ {
		if _, err := h.Challenge(rng, domain.StrainIdentity{Clade: i, Genome: int64(10 + i)}, 200); err != nil {
			t.Fatalf("challenge: %v", err)
		}
	}
	for day := 0; day < 20; day++ {
		if err := h.Update(rng, 1); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	h.reservoir[testStrain] = &gametocytePool{male: 40, female: 90}
	snap := h.Snapshot()

	restored, err := Restore(&p, snap, Settings{Events: &eventLog{}})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.Snapshot(); !reflect.DeepEqual(got, snap) {
		t.Fatalf("snapshot mismatch after restore")
	}

	a, b := random.New(99), random.New(99)
	for day := 0; day < 10; day++ {
		if err := h.Update(a, 1); err != nil {
			t.Fatalf("update original: %v", err)
		}
		if err := restored.Update(b, 1); err != nil {
			t.Fatalf("update restored: %v", err)
		}
	}
	if !reflect.DeepEqual(h.Snapshot(), restored.Snapshot()) {
		t.Fatal("restored host diverged from the original")
	}
}
