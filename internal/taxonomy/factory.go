package taxonomy

import (
	"time"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
)

// Sources for common ancestor lookups.
const (
	SourceEmbedded = "embedded"
	SourceRemote   = "remote"
)

// Config selects and tunes the ancestor lookup.
type Config struct {
	Source string
	// File replaces the embedded hierarchy when set.
	File          string
	RemoteURL     string
	RemoteTimeout time.Duration
	CacheTTL      time.Duration
}

// NewFinder builds the memoized Finder described by cfg. The local
// hierarchy is always loaded and returned, since label paths are served
// from it even when ancestors come from the remote service.
func NewFinder(cfg Config, log logger.Logger) (*CachedFinder, *Database, error) {
	if log == nil {
		log = logger.Global().Module("taxonomy")
	}

	var (
		db  *Database
		err error
	)
	if cfg.File != "" {
		db, err = LoadFile(cfg.File)
	} else {
		db, err = LoadEmbedded()
	}
	if err != nil {
		return nil, nil, err
	}

	var inner Finder
	switch cfg.Source {
	case "", SourceEmbedded:
		inner = db
	case SourceRemote:
		remote, err := NewRemoteClient(RemoteConfig{BaseURL: cfg.RemoteURL, Timeout: cfg.RemoteTimeout}, log)
		if err != nil {
			return nil, nil, err
		}
		inner = remote
	default:
		return nil, nil, errors.Newf("unknown taxonomy source %q", cfg.Source).
			Component("taxonomy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log.Info("taxonomy ready",
		logger.String("source", cfg.Source),
		logger.Int("labels", db.Len()),
		logger.Duration("cache_ttl", cfg.CacheTTL))

	finder := NewCachedFinder(inner, cfg.CacheTTL)
	finder.paths = db
	return finder, db, nil
}
