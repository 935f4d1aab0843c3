package cmd

import (
	"context"
	"fmt"

	"github.com/tartarus-sandbox/persephone/pkg/config"
	"github.com/tartarus-sandbox/persephone/pkg/erebus"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
)

// openStore opens the history store selected by the configuration.
func openStore(c config.StoreConfig) (persephone.HistoryStore, error) {
	switch c.Backend {
	case "redis":
		return persephone.NewRedisHistoryStore(c.RedisAddr, c.RedisDB, c.RedisPassword)
	case "local", "":
		return persephone.NewLocalHistoryStore(c.Dir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

// openArchive opens the blob store reports are archived to, or nil when
// archiving is disabled.
func openArchive(ctx context.Context, c config.ArchiveConfig) (erebus.Store, error) {
	switch c.Backend {
	case "none", "":
		return nil, nil
	case "local":
		return erebus.NewLocalStore(c.Dir)
	case "s3":
		return erebus.NewS3Store(ctx, erebus.S3Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", c.Backend)
	}
}
