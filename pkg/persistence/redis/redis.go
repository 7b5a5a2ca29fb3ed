// Package redis stores workflows and execution ledgers in Redis as JSON snapshots.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/stepflow/pkg/log"
)

const (
	defaultPrefix = "stepflow"
	defaultTTL    = 7 * 24 * time.Hour
)

// Config holds Redis connection configuration.
type Config struct {
	// URL is the Redis connection URL (redis://host:port/db).
	URL string

	// Prefix for all keys.
	Prefix string

	// TTL for execution ledgers. Zero keeps them forever. Workflows never expire.
	TTL time.Duration
}

// ParseConfig reads a connection URL. The prefix and ttl query parameters are consumed here and the rest is
// left for the Redis client, e.g. redis://localhost:6379/0?prefix=stepflow&ttl=24h.
func ParseConfig(rawURL string) (Config, error) {
	cfg := Config{Prefix: defaultPrefix, TTL: defaultTTL}

	u, err := url.Parse(rawURL)
	if err != nil {
		return cfg, fmt.Errorf("invalid redis url: %w", err)
	}

	query := u.Query()

	if prefix := strings.TrimSpace(query.Get("prefix")); prefix != "" {
		cfg.Prefix = prefix
	}

	if raw := query.Get("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return cfg, fmt.Errorf("invalid redis ttl %q", raw)
		}

		cfg.TTL = ttl
	}

	query.Del("prefix")
	query.Del("ttl")
	u.RawQuery = query.Encode()
	cfg.URL = u.String()

	return cfg, nil
}

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	*WorkflowRepository
	*ExecutionRepository

	client *goredis.Client
	logger *slog.Logger
}

// NewPersistence connects to Redis and verifies the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, cfg Config) (*Persistence, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewPersistenceWithClient(logger, client, cfg), nil
}

// NewPersistenceWithClient creates a store using an existing Redis client.
func NewPersistenceWithClient(logger *slog.Logger, client *goredis.Client, cfg Config) *Persistence {
	logger = log.OrNop(logger).With("module", "redis")

	k := keys{prefix: cfg.Prefix}
	if k.prefix == "" {
		k.prefix = defaultPrefix
	}

	return &Persistence{
		WorkflowRepository:  &WorkflowRepository{client: client, keys: k, logger: logger},
		ExecutionRepository: &ExecutionRepository{client: client, keys: k, ttl: cfg.TTL, logger: logger},
		client:              client,
		logger:              logger,
	}
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

type keys struct {
	prefix string
}

func (k keys) workflow(id string) string { return k.prefix + ":workflow:" + id }

func (k keys) workflows() string { return k.prefix + ":workflows" }

func (k keys) execution(id string) string { return k.prefix + ":execution:" + id }

func (k keys) workflowExecutions(workflowID string) string {
	return k.prefix + ":workflow:" + workflowID + ":executions"
}
