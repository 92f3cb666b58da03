// Package eventstore provides an append-only event store on top of a
// relational database (postgres, mysql or sqlite via gorm).
// Events are organized into streams and committed with optimistic
// concurrency control. They can be loaded per stream or through virtual
// streams (all events, a stream category or a correlation id) as lazily
// evaluated, strictly ordered event streams.
// Apart from the event store, mechanisms for building projections and
// working with aggregate roots are provided
package eventstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Cfg represents event store configuration
type Cfg struct {
	PostgresDSN string
	SQLitePath  string
	MySQLDSN    string
	DB          *gorm.DB

	TableName string
	Clock     Clock
	Logger    *slog.Logger

	RetryInterval time.Duration
	MaxRetries    int
	BatchSize     int
}

// Option represents event store configuration option
type Option func(Cfg) Cfg

// WithPostgresDB is an event store option that can be used to configure
// the eventstore to use postgres as a backing storage (pgx driver)
func WithPostgresDB(dsn string) Option {
	return func(cfg Cfg) Cfg {
		cfg.PostgresDSN = dsn

		return cfg
	}
}

// WithSQLiteDB is an event store option that can be used to configure
// the eventstore to use sqlite as a backing storage
func WithSQLiteDB(path string) Option {
	return func(cfg Cfg) Cfg {
		cfg.SQLitePath = path

		return cfg
	}
}

// WithMySQLDB is an event store option that can be used to configure
// the eventstore to use mysql (or mariadb) as a backing storage
func WithMySQLDB(dsn string) Option {
	return func(cfg Cfg) Cfg {
		cfg.MySQLDSN = dsn

		return cfg
	}
}

// WithDB configures the event store to use an already opened gorm connection
func WithDB(db *gorm.DB) Option {
	return func(cfg Cfg) Cfg {
		cfg.DB = db

		return cfg
	}
}

// WithTableName sets the name of the events table (DefaultTableName by default)
func WithTableName(name string) Option {
	return func(cfg Cfg) Cfg {
		cfg.TableName = name

		return cfg
	}
}

// WithClock sets the clock used to timestamp committed events
func WithClock(c Clock) Option {
	return func(cfg Cfg) Cfg {
		cfg.Clock = c

		return cfg
	}
}

// WithLogger sets the structured logger (slog.Default() by default)
func WithLogger(l *slog.Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Logger = l

		return cfg
	}
}

// WithRetryPolicy configures the backoff for commits that lose a write
// race: the first retry waits interval, every further retry waits twice
// as long, and the commit fails after maxRetries retries
func WithRetryPolicy(interval time.Duration, maxRetries int) Option {
	return func(cfg Cfg) Cfg {
		cfg.RetryInterval = interval
		cfg.MaxRetries = maxRetries

		return cfg
	}
}

// WithBatchSize sets the number of records fetched per query while
// iterating an event stream
func WithBatchSize(size int) Option {
	return func(cfg Cfg) Cfg {
		cfg.BatchSize = size

		return cfg
	}
}

// New constructs a new event store. Call Setup once to create the
// events table.
func New(opts ...Option) (*EventStore, error) {
	cfg := Cfg{
		TableName:     DefaultTableName,
		Clock:         SystemClock{},
		RetryInterval: DefaultRetryInterval,
		MaxRetries:    DefaultMaxRetries,
		BatchSize:     DefaultBatchSize,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db := cfg.DB

	if db == nil {
		var dial gorm.Dialector

		switch {
		case cfg.PostgresDSN != "":
			dial = postgres.Open(cfg.PostgresDSN)
		case cfg.MySQLDSN != "":
			dial = mysql.Open(cfg.MySQLDSN)
		default:
			dial = sqlite.Open(cfg.SQLitePath)
		}

		var err error

		db, err = gorm.Open(dial, &gorm.Config{
			SkipDefaultTransaction: true,
			Logger:                 logger.Discard,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &EventStore{
		db:        db,
		table:     cfg.TableName,
		dialect:   newDialect(db.Dialector.Name(), cfg.TableName),
		clock:     cfg.Clock,
		log:       cfg.Logger.With(slog.String("table", cfg.TableName)),
		retry:     retryPolicy{interval: cfg.RetryInterval, maxRetries: cfg.MaxRetries},
		batchSize: cfg.BatchSize,
		sleep:     sleepContext,
	}, nil
}

func (cfg Cfg) validate() error {
	backends := 0

	for _, set := range []bool{cfg.PostgresDSN != "", cfg.SQLitePath != "", cfg.MySQLDSN != "", cfg.DB != nil} {
		if set {
			backends++
		}
	}

	if backends == 0 {
		return fmt.Errorf("either a postgres dsn, a mysql dsn, a sqlite path or a gorm db must be provided")
	}

	if backends > 1 {
		return fmt.Errorf("only one backing storage may be configured")
	}

	if strings.TrimSpace(cfg.TableName) == "" {
		return fmt.Errorf("table name must be provided")
	}

	if cfg.Clock == nil {
		return fmt.Errorf("clock must be provided")
	}

	if cfg.BatchSize < 1 {
		return fmt.Errorf("batch size should be at least 1")
	}

	if cfg.RetryInterval < 0 || cfg.MaxRetries < 0 {
		return fmt.Errorf("retry interval and max retries cannot be negative")
	}

	return nil
}

// EventStore is a relational event store. Reads may be issued
// concurrently; commits are serialized per EventStore session (see
// Session) and fail with ErrTransactionActive when one is already in
// progress.
type EventStore struct {
	db        *gorm.DB
	table     string
	dialect   dialect
	clock     Clock
	log       *slog.Logger
	retry     retryPolicy
	batchSize int
	sleep     func(context.Context, time.Duration) error

	state atomic.Int32
}

// Session returns a new writer session sharing the connection pool and
// configuration of es. Use one session per concurrent committer.
func (es *EventStore) Session() *EventStore {
	return &EventStore{
		db:        es.db,
		table:     es.table,
		dialect:   es.dialect,
		clock:     es.clock,
		log:       es.log,
		retry:     es.retry,
		batchSize: es.batchSize,
		sleep:     es.sleep,
	}
}

// Close should be called as a part of cleanup process
// in order to close the underlying sql connection
func (es *EventStore) Close() error {
	sqlDB, err := es.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Load returns the events of a stream or a virtual stream, optionally
// restricted by filter. Nothing is read until the returned stream is
// iterated.
func (es *EventStore) Load(sel StreamSelector, filter *EventStreamFilter) (EventStream, error) {
	where, err := es.dialect.resolve(sel, filter)
	if err != nil {
		return nil, err
	}

	return newBatchStream(
		newQueryStream(es.db, es.table, where),
		es.batchSize,
		es.ensureConnected,
	), nil
}

// DeleteStream removes all events of the given stream
func (es *EventStore) DeleteStream(ctx context.Context, stream StreamName) error {
	if len(stream) == 0 {
		return fmt.Errorf("stream name must be provided")
	}

	if err := es.ensureConnected(ctx); err != nil {
		return err
	}

	return es.db.
		WithContext(ctx).
		Table(es.table).
		Where(clause.Eq{Column: clause.Column{Name: "stream"}, Value: string(stream)}).
		Delete(&Record{}).Error
}

// ensureConnected probes the database and retries once, giving the
// connection pool the chance to replace a broken connection
func (es *EventStore) ensureConnected(ctx context.Context) error {
	sqlDB, err := es.db.DB()
	if err != nil {
		return err
	}

	err = sqlDB.PingContext(ctx)
	if err == nil {
		return nil
	}

	es.log.WarnContext(ctx, "database probe failed, reconnecting", slog.Any("error", err))

	return sqlDB.PingContext(ctx)
}
