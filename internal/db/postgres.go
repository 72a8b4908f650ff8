// Package db opens the connections behind the store drivers.
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// libpq parameters pgx understands; anything else (ORM-specific keys such as
// schema or pgbouncer) makes ParseConfig treat it as a runtime param.
var pgQueryKeys = map[string]struct{}{
	"application_name":     {},
	"connect_timeout":      {},
	"host":                 {},
	"options":              {},
	"pool_max_conns":       {},
	"pool_min_conns":       {},
	"sslcert":              {},
	"sslkey":               {},
	"sslmode":              {},
	"sslpassword":          {},
	"sslrootcert":          {},
	"target_session_attrs": {},
}

var pgSchemeAliases = []string{"postgresql+psycopg://", "postgresql://"}

// ConnectPostgres opens a pgx pool and verifies it with a ping.
func ConnectPostgres(ctx context.Context, rawURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(normalizePostgresURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func normalizePostgresURL(rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	for _, alias := range pgSchemeAliases {
		if strings.HasPrefix(normalized, alias) {
			normalized = "postgres://" + strings.TrimPrefix(normalized, alias)
			break
		}
	}

	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Scheme != "postgres" {
		return normalized
	}
	kept := make(url.Values)
	for key, values := range parsed.Query() {
		if _, ok := pgQueryKeys[key]; !ok {
			continue
		}
		for _, v := range values {
			kept.Add(key, v)
		}
	}
	parsed.RawQuery = kept.Encode()
	return parsed.String()
}
