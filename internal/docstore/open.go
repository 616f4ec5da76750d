package docstore

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	SQLitePath string

	S3Bucket string
	S3Prefix string
	S3Region string
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger logrus.FieldLogger) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("remote.sqlite.path is required for the sqlite driver")
		}
		return OpenSQLite(ctx, cfg.SQLitePath, logger)

	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("remote.s3.bucket is required for the s3 driver")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.S3Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil

	case DriverMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown remote driver %q (want sqlite, s3 or memory)", cfg.Driver)
	}
}
