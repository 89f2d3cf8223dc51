package store

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a backend.
type Config struct {
	Driver     string // memory, redis, postgres, mongo
	URL        string
	Prefix     string // redis key prefix
	Table      string // postgres table
	Database   string // mongo database
	Collection string // mongo collection
	Key        []byte // when set, artifacts are sealed with this key
}

// Open returns the store cfg describes.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		s = NewMemory()
	case "redis":
		s, err = OpenRedis(ctx, cfg.URL, cfg.Prefix)
	case "postgres", "postgresql":
		s, err = OpenPostgres(ctx, cfg.URL, cfg.Table)
	case "mongo", "mongodb":
		s, err = OpenMongo(ctx, cfg.URL, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if len(cfg.Key) == 0 {
		return s, nil
	}
	sealed, err := NewSealed(s, cfg.Key)
	if err != nil {
		s.Close()
		return nil, err
	}
	return sealed, nil
}
