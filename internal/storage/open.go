package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind names a storage backend
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindRedis  Kind = "redis"
	KindSQLite Kind = "sqlite"
	KindRemote Kind = "remote"
)

// Kinds lists every supported backend
var Kinds = []Kind{KindMemory, KindFile, KindRedis, KindSQLite, KindRemote}

// Options selects and configures a backend
type Options struct {
	Kind         Kind
	Dir          string        // file
	RedisURL     string        // redis
	RedisPrefix  string        // redis
	SQLitePath   string        // sqlite
	PollInterval time.Duration // sqlite
	HubURL       string        // remote
}

// Open creates the store described by opts
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Kind {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		return OpenFile(opts.Dir, logger)
	case KindRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.RedisPrefix, logger)
	case KindSQLite:
		return OpenSQLite(ctx, opts.SQLitePath, opts.PollInterval, logger)
	case KindRemote:
		return OpenRemote(ctx, opts.HubURL, logger)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
