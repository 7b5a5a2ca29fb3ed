package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/persistence/postgresql"
	"github.com/dukex/stepflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis", "rediss"}

// NewPersistence picks the backend from the URL scheme. A URL without a known scheme is a file path, created
// when missing.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		cfg, err := redis.ParseConfig(databaseURL)
		if err != nil {
			return nil, err
		}

		return redis.NewPersistence(ctx, logger, cfg)
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		p := file.NewPersistence(root)
		if err := p.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("file persistence unavailable: %w", err)
		}

		return p, nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
