package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"

	"falciparum/internal/infra/archive/fs"
	"falciparum/internal/infra/archive/memory"
	"falciparum/internal/infra/archive/s3"
	"falciparum/pkg/domain"
)

// Config selects and configures the archive driver.
//
//	MALARIA_ARCHIVE_DRIVER: fs|memory|s3 (default fs)
//	MALARIA_ARCHIVE_FS_ROOT: directory for the fs driver (default ./checkpoints)
//	MALARIA_ARCHIVE_S3_BUCKET: bucket, required for s3
//	MALARIA_ARCHIVE_S3_REGION, MALARIA_ARCHIVE_S3_ENDPOINT,
//	MALARIA_ARCHIVE_S3_PREFIX, MALARIA_ARCHIVE_S3_PATH_STYLE
//
// S3 credentials come from the default AWS chain (AWS_ACCESS_KEY_ID etc.).
type Config struct {
	Driver      Driver `env:"DRIVER" envDefault:"fs"`
	FSRoot      string `env:"FS_ROOT" envDefault:"./checkpoints"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Prefix    string `env:"S3_PREFIX"`
	S3PathStyle bool   `env:"S3_PATH_STYLE"`
}

// EnvPrefix namespaces the archive environment variables.
const EnvPrefix = "MALARIA_ARCHIVE_"

// ConfigFromEnv parses Config from environ, or the process environment
// when environ is nil.
func ConfigFromEnv(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, &domain.ConfigError{Param: "archive", Reason: "parse env", Cause: err}
	}
	return cfg, nil
}

// Open builds the store described by the process environment.
func Open(ctx context.Context) (Store, error) {
	cfg, err := ConfigFromEnv(nil)
	if err != nil {
		return nil, err
	}
	return OpenConfig(ctx, cfg)
}

// OpenConfig builds the store described by cfg.
func OpenConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, &domain.ConfigError{Param: EnvPrefix + "S3_BUCKET", Reason: "required for s3 driver"}
		}
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, &domain.ConfigError{Param: EnvPrefix + "DRIVER", Reason: fmt.Sprintf("unknown archive driver %q", cfg.Driver)}
	}
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
