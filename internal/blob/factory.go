package blob

import (
	"context"
	"fmt"

	"modelcore/internal/config"
)

// OpenWith selects a Store implementation from explicit configuration.
func OpenWith(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

// Open selects a Store implementation using environment variables.
//
//	MODELCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	MODELCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./archives)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	return OpenWith(ctx, config.FromEnv().Blob)
}
