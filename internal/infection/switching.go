package infection

import (
	"falciparum/internal/config"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// switchDraws returns the counts switching out of a slot holding n parasites,
// destined for the slots that follow it in order.
type switchDraws func(rng random.Source, rate float64, n int64) []int64

var decayingWeights = [...]float64{1, 0.5, 0.25, 0.125, 0.0625}

func switchModel(m config.SwitchModel) (switchDraws, error) {
	switch m {
	case config.SwitchRatePerParasite7Vars:
		return func(rng random.Source, rate float64, n int64) []int64 {
			out := make([]int64, 7)
			for k := range out {
				out[k] = rng.Poisson(rate * float64(n))
			}
			return out
		}, nil
	case config.SwitchRatePerParasite5Decay:
		return func(rng random.Source, rate float64, n int64) []int64 {
			out := make([]int64, len(decayingWeights))
			for k, w := range decayingWeights {
				out[k] = rng.Poisson(rate * w * float64(n))
			}
			return out
		}, nil
	case config.SwitchConstantRate2Vars:
		return func(rng random.Source, rate float64, n int64) []int64 {
			total := rng.Poisson(rate * float64(n))
			first := rng.Binomial(total, 0.5)
			return []int64{first, total - first}
		}, nil
	}
	return nil, &domain.ConfigError{Param: "PARASITE_SWITCH_TYPE", Reason: "unsupported switch model " + string(m)}
}

// switchAntigens produces the next cycle's variant populations. For each
// occupied slot j the switched mass is capped at (1-gamRate)*irbc[j], the
// remaining non-committed parasites stay in j, and every surviving count is
// multiplied by merozoitesPerSchizont*survival.
func switchAntigens(model config.SwitchModel, rng random.Source, irbc [variants]int64, rate, survival, merozoitesPerSchizont, gamRate float64) ([variants]int64, error) {
	var next [variants]int64
	draw, err := switchModel(model)
	if err != nil {
		return next, err
	}
	scale := merozoitesPerSchizont * survival
	for j, n := range irbc {
		if n <= 0 {
			continue
		}
		limit := (1 - gamRate) * float64(n)
		switched := draw(rng, rate, n)
		var sum int64
		for _, s := range switched {
			sum += s
		}
		if float64(sum) > limit {
			factor := limit / float64(sum)
			sum = 0
			for k := range switched {
				switched[k] = int64(float64(switched[k]) * factor)
				sum += switched[k]
			}
		}
		stay := int64(limit) - sum
		if stay < 0 {
			stay = 0
		}
		next[j] += int64(float64(stay) * scale)
		for k, s := range switched {
			next[(j+k+1)%variants] += int64(float64(s) * scale)
		}
	}
	return next, nil
}
