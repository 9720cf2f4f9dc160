// Package datastore is the persistence layer for captures, the analysis
// queue and tags. It runs on PostgreSQL in production and supports MySQL and
// SQLite through the same GORM models.
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const (
	// DefaultMaxAttempts is the number of permanent failures after which a
	// queue entry is no longer fetched.
	DefaultMaxAttempts = 3

	tagCacheTTL     = 1 * time.Hour
	tagCacheCleanup = 10 * time.Minute
)

// ErrCaptureNotFound indicates the capture does not exist or is deleted.
var ErrCaptureNotFound = errors.NewStd("capture not found")

// Config holds the database connection settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate creates the tables on open; meant for SQLite and tests
	AutoMigrate        bool
	SlowQueryThreshold time.Duration
}

// Store implements the queue, capture and tag operations on a GORM database.
// Safe for concurrent use.
type Store struct {
	db          *gorm.DB
	driver      string
	log         logger.Logger
	tagIDs      *cache.Cache
	maxAttempts int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMaxAttempts overrides the eligibility ceiling used by FetchPending,
// ClaimPending and QueueStats.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now for timestamps written by the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore wraps an open GORM connection.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		driver:      db.Dialector.Name(),
		tagIDs:      cache.New(tagCacheTTL, tagCacheCleanup),
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("datastore")
	}
	return s
}

// Open connects to the configured database and returns a Store.
func Open(cfg Config, opts ...Option) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	// Resolve the logger first so the GORM adapter writes to the same module
	preset := &Store{}
	for _, opt := range opts {
		opt(preset)
	}
	log := preset.log
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	slow := cfg.SlowQueryThreshold
	if slow == 0 {
		slow = 200 * time.Millisecond
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slow),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", cfg.Driver).
			Context("operation", "open").
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_sql_db").
			Build()
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := NewStore(db, append([]Option{WithLogger(log)}, opts...)...)

	if cfg.AutoMigrate {
		if err := store.AutoMigrate(context.Background()); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	log.Info("Database opened",
		logger.String("driver", store.driver),
		logger.Bool("auto_migrate", cfg.AutoMigrate))
	return store, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, errors.Newf("database DSN is required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql", "":
		return postgres.Open(cfg.DSN), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverSQLite, "sqlite3":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, errors.Newf("unsupported database driver %q", cfg.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// AutoMigrate creates or updates the tables used by the pipeline.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Capture{}, &AnalysisQueueEntry{}, &Tag{}, &CaptureTag{}); err != nil {
		return dbError(err, "auto_migrate")
	}
	return nil
}

// DB exposes the underlying connection for callers that seed or inspect data.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

func dbError(err error, operation string) error {
	return errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
