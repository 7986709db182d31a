// Command hostsim runs a challenge cohort: every host receives one infectious
// bite on day 0 and the cohort is stepped for a number of days. A JSON
// summary of clinical outcomes is written to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"falciparum/internal/archive"
	"falciparum/internal/config"
	"falciparum/internal/core"
	"falciparum/internal/host"
	"falciparum/pkg/domain"
)

var exitFunc = os.Exit

type options struct {
	hosts       int
	days        float64
	dt          float64
	ageDays     float64
	sporozoites int64
	seed        uint64
	checkpoint  bool
	metricsAddr string
	envFile     string
}

// Summary is the outcome of a cohort run.
type Summary struct {
	Hosts             int     `json:"hosts"`
	Days              float64 `json:"days"`
	Infected          int     `json:"infected"`
	ClinicalCases     int     `json:"clinical_cases"`
	SevereCases       int     `json:"severe_cases"`
	SevereAnemia      int     `json:"severe_anemia"`
	Deaths            int     `json:"deaths"`
	Cleared           int     `json:"infections_cleared"`
	MeanPeakDensity   float64 `json:"mean_peak_density"`
	StillParasitaemic int     `json:"still_parasitaemic"`
	RunID             string  `json:"run_id,omitempty"`
}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("hostsim", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var o options
	fset.IntVar(&o.hosts, "hosts", 100, "number of hosts in the cohort")
	fset.Float64Var(&o.days, "days", 60, "simulated days")
	fset.Float64Var(&o.dt, "dt", 1, "step length in days")
	fset.Float64Var(&o.ageDays, "age-days", 20*365, "host age in days")
	fset.Int64Var(&o.sporozoites, "sporozoites", 100, "sporozoites delivered by the day-0 bite")
	fset.Uint64Var(&o.seed, "seed", 1, "random seed")
	fset.BoolVar(&o.checkpoint, "checkpoint", false, "save the final cohort to the configured store and archive")
	fset.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	fset.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before reading MALARIA_* variables")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if o.hosts < 1 || !(o.days > 0) || !(o.dt > 0) {
		fmt.Fprintln(stderr, "hostsim: -hosts, -days and -dt must be positive")
		return 2
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	summary, err := run(ctx, o, logger)
	if err != nil {
		logger.Error("hostsim failed", "error", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("write summary", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, o options, logger *slog.Logger) (Summary, error) {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Summary{}, fmt.Errorf("load %s: %w", o.envFile, err)
	}
	params, err := config.Load()
	if err != nil {
		return Summary{}, err
	}

	rec := core.NewPrometheusRecorder()
	opts := []core.Option{core.WithLogger(logger), core.WithMetrics(rec)}
	if o.metricsAddr != "" {
		srv := &http.Server{
			Addr:              o.metricsAddr,
			Handler:           promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	if o.checkpoint {
		store, err := core.OpenSnapshotStore(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
		arch, err := archive.Open(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("open archive: %w", err)
		}
		opts = append(opts, core.WithStore(store), core.WithArchive(arch))
	}

	svc, err := core.NewService(&params, o.seed, opts...)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Hosts: o.hosts}
	strain := domain.StrainIdentity{}
	for i := 0; i < o.hosts; i++ {
		id, err := svc.AddHost(ctx, host.Settings{ID: fmt.Sprintf("host-%04d", i), AgeDays: o.ageDays})
		if err != nil {
			return Summary{}, err
		}
		infected, err := svc.Challenge(ctx, id, strain, o.sporozoites)
		if err != nil {
			return Summary{}, err
		}
		if infected {
			summary.Infected++
		}
	}

	peaks := make(map[string]float64, o.hosts)
	for svc.Day() < o.days {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		report, err := svc.Step(ctx, o.dt)
		if err != nil {
			return Summary{}, err
		}
		summary.ClinicalCases += report.Count(domain.EventNewClinicalCase)
		summary.SevereCases += report.Count(domain.EventNewSevereCase)
		summary.SevereAnemia += report.Count(domain.EventSevereAnemia)
		summary.Cleared += report.Count(domain.EventInfectionClear)
		summary.Deaths += report.Count(domain.EventHostDeath)
		recordPeaks(peaks, svc.Hosts())
	}
	summary.Days = svc.Day()

	var peak float64
	for _, d := range peaks {
		peak += d
	}
	summary.MeanPeakDensity = peak / float64(o.hosts)
	for _, h := range svc.Hosts() {
		if !h.Dead && h.Immune.ParasiteDensity > 0 {
			summary.StillParasitaemic++
		}
	}

	if o.checkpoint {
		runID, err := svc.Checkpoint(ctx)
		if err != nil {
			return Summary{}, err
		}
		summary.RunID = runID
	}
	logger.Info("cohort finished",
		"hosts", summary.Hosts,
		"days", summary.Days,
		"clinical", summary.ClinicalCases,
		"severe", summary.SevereCases,
		"deaths", summary.Deaths,
		"cleared", summary.Cleared,
		"mean_peak_density", summary.MeanPeakDensity,
	)
	return summary, nil
}

// recordPeaks keeps the highest parasite density seen for each host over the
// whole run. The immune snapshot's own maximum only covers the current
// clinical episode.
func recordPeaks(peaks map[string]float64, hosts []domain.HostSnapshot) {
	for _, h := range hosts {
		if d := h.Immune.ParasiteDensity; d > peaks[h.ID] {
			peaks[h.ID] = d
		}
	}
}
