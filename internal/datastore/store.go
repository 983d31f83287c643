// Package datastore loads recordings, tracks and tags from SQLite or MySQL
// for visit generation.
package datastore

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// ErrNotInitialized is returned when the store has no open connection.
var ErrNotInitialized = errors.NewStd("database connection is not initialized")

// Supported database types.
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

const (
	defaultSlowThreshold = 200 * time.Millisecond
	dbConnectTimeout     = 10 * time.Second
)

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string
}

// MySQLConfig holds MySQL connection parameters.
type MySQLConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Config selects and configures the database.
type Config struct {
	Type   string
	SQLite SQLiteConfig
	MySQL  MySQLConfig
	// IncludeFiltered keeps tracks the tracker marked as filtered.
	IncludeFiltered bool
	SlowThreshold   time.Duration
}

// QueryRecorder receives datastore query statistics.
type QueryRecorder interface {
	RecordQuery(operation string, duration time.Duration, rows int, err error)
}

type noopQueryRecorder struct{}

func (noopQueryRecorder) RecordQuery(string, time.Duration, int, error) {}

// Store is the GORM backed RecordingFetcher.
type Store struct {
	db              *gorm.DB
	dbType          string
	includeFiltered bool
	log             logger.Logger
	metrics         QueryRecorder
}

// Option configures a Store.
type Option func(*Store)

// WithQueryRecorder sets the metrics sink for queries.
func WithQueryRecorder(r QueryRecorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithIncludeFiltered keeps filtered tracks in query results.
func WithIncludeFiltered(include bool) Option {
	return func(s *Store) {
		s.includeFiltered = include
	}
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	gormCfg := &gorm.Config{Logger: logger.NewGormLoggerAdapter(log.Module(cfg.Type), slow)}

	var (
		dialector gorm.Dialector
		inMemory  bool
	)
	switch cfg.Type {
	case TypeSQLite:
		path, err := prepareSQLitePath(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		inMemory = path == sqliteMemory
		dialector = sqlite.Open(path)
	case TypeMySQL:
		dialector = mysql.Open(MySQLDSN(cfg.MySQL))
	default:
		return nil, errors.Newf("unsupported database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", cfg.Type).
			Context("operation", "open").
			Build()
	}

	if sqlDB, err := db.DB(); err == nil {
		switch {
		case cfg.Type == TypeMySQL:
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetMaxOpenConns(50)
			sqlDB.SetConnMaxLifetime(time.Hour)
		case inMemory:
			// each connection to :memory: is a separate empty database
			sqlDB.SetMaxOpenConns(1)
			sqlDB.SetMaxIdleConns(1)
			sqlDB.SetConnMaxLifetime(0)
		}
	}

	opts = append([]Option{WithIncludeFiltered(cfg.IncludeFiltered)}, opts...)
	store := New(db, cfg.Type, log, opts...)
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("database opened", logger.String("db_type", cfg.Type))
	return store, nil
}

// New wraps an already open connection.
func New(db *gorm.DB, dbType string, log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	s := &Store{
		db:      db,
		dbType:  dbType,
		log:     log,
		metrics: noopQueryRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MySQLDSN builds a DSN with escaped credentials.
func MySQLDSN(cfg MySQLConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dsn := gomysql.Config{
		User:                 cfg.Username,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		DBName:               cfg.Database,
		AllowNativePasswords: true,
		ParseTime:            true,
		Loc:                  time.UTC,
		Timeout:              dbConnectTimeout,
		ReadTimeout:          dbConnectTimeout,
		WriteTimeout:         dbConnectTimeout,
		Params:               map[string]string{"charset": "utf8mb4"},
	}
	return dsn.FormatDSN()
}

const sqliteMemory = ":memory:"

// prepareSQLitePath creates the database directory. An empty path means an
// in-memory database.
func prepareSQLitePath(path string) (string, error) {
	if path == "" || path == sqliteMemory {
		return sqliteMemory, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}
	return path, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if s.db == nil {
		return ErrNotInitialized
	}
	start := time.Now()
	if err := s.db.AutoMigrate(allModels()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", s.dbType).
			Timing("auto_migrate", time.Since(start)).
			Build()
	}
	s.log.Debug("database migration completed",
		logger.String("db_type", s.dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

// QueryRecordings implements visits.RecordingFetcher. Recordings come back
// newest first with used, non-archived tags on non-archived tracks.
func (s *Store) QueryRecordings(ctx context.Context, q visits.Query) ([]visits.Recording, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	tx := s.db.WithContext(ctx).
		Model(&Recording{}).
		Where("recording_date_time >= ? AND recording_date_time < ?", q.Window.From.UTC(), q.Window.Until.UTC())
	if q.GroupID != 0 {
		tx = tx.Where("group_id = ?", q.GroupID)
	}
	if len(q.Stations) > 0 {
		tx = tx.Where("station_id IN ?", q.Stations)
	}
	if len(q.Types) > 0 {
		types := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, string(t))
		}
		tx = tx.Where("type IN ?", types)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []Recording
	err := tx.
		Preload("Group").
		Preload("Station").
		Preload("Device").
		Preload("Tracks", func(db *gorm.DB) *gorm.DB {
			db = db.Where("archived = ?", false)
			if !s.includeFiltered {
				db = db.Where("filtered = ?", false)
			}
			return db.Order("id")
		}).
		Preload("Tracks.Tags", func(db *gorm.DB) *gorm.DB {
			return db.Where("used = ? AND archived = ?", true, false).Order("id")
		}).
		Order("recording_date_time DESC").
		Order("id DESC").
		Find(&rows).Error
	s.metrics.RecordQuery("query_recordings", time.Since(start), len(rows), err)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("group_id", q.GroupID).
			Context("stations", q.Stations).
			Timing("query_recordings", time.Since(start)).
			Build()
	}

	out := make([]visits.Recording, 0, len(rows))
	for i := range rows {
		out = append(out, toVisitRecording(&rows[i]))
	}
	return out, nil
}
