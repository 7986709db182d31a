package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"falciparum/pkg/domain"
)

// EnvPrefix namespaces every parameter environment variable.
const EnvPrefix = "MALARIA_"

// Load overlays MALARIA_* environment variables onto Default and validates
// the result.
func Load() (Params, error) {
	return load(env.Options{Prefix: EnvPrefix})
}

// LoadFrom is Load with an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (Params, error) {
	return load(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func load(opts env.Options) (Params, error) {
	p := Default()
	if err := env.ParseWithOptions(&p, opts); err != nil {
		return Params{}, &domain.ConfigError{Param: "environment", Reason: "parse env", Cause: fmt.Errorf("parse env: %w", err)}
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
