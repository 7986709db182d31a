// Package random provides the seeded random source threaded through every
// stochastic model update.
//
// A Source is not safe for concurrent use. Each host owns its own stream,
// derived from the run seed with Derive, so hosts can be stepped in parallel
// and still reproduce the same trajectories for a given seed.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source supplies the draws used by the model.
type Source interface {
	// Uniform returns a draw from [0, 1).
	Uniform() float64
	// Poisson returns a Poisson draw with the given mean. Non-positive means
	// return 0.
	Poisson(mean float64) int64
	// Gaussian returns a standard normal draw.
	Gaussian() float64
	// Normal returns a normal draw with the given mean and standard deviation.
	Normal(mu, sigma float64) float64
	// Binomial returns the number of successes in n trials of probability p.
	Binomial(n int64, p float64) int64
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}

// PCG is a Source backed by a permuted congruential generator and gonum
// distributions.
type PCG struct {
	src *rand.PCG
	rng *rand.Rand
}

// New returns a Source seeded deterministically from seed.
func New(seed uint64) *PCG {
	src := rand.NewPCG(seed, splitmix(seed))
	return &PCG{src: src, rng: rand.New(src)}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Derive returns the seed of an independent stream for the given index.
func Derive(seed uint64, stream uint64) uint64 {
	return splitmix(seed ^ splitmix(stream+1))
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func (s *PCG) Uniform() float64 {
	return distuv.Uniform{Min: 0, Max: 1, Src: s.src}.Rand()
}

func (s *PCG) Poisson(mean float64) int64 {
	if !(mean > 0) {
		return 0
	}
	return int64(distuv.Poisson{Lambda: mean, Src: s.src}.Rand())
}

func (s *PCG) Gaussian() float64 {
	return s.Normal(0, 1)
}

func (s *PCG) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

func (s *PCG) Binomial(n int64, p float64) int64 {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	v := distuv.Binomial{N: float64(n), P: p, Src: s.src}.Rand()
	return int64(math.Round(v))
}

func (s *PCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}
