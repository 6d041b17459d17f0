package database

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrEmptyDSN = errors.New("database: empty connection string")

type options struct {
	logLevel     logger.LogLevel
	maxIdleConns int
	maxOpenConns int
	connLifetime time.Duration
}

type Option func(*options)

// WithLogLevel maps "silent", "error", "warn" or "info" onto the gorm logger.
// Unknown values keep the default.
func WithLogLevel(level string) Option {
	return func(o *options) {
		if l, ok := ParseLogLevel(level); ok {
			o.logLevel = l
		}
	}
}

func WithPool(maxIdle, maxOpen int, lifetime time.Duration) Option {
	return func(o *options) {
		o.maxIdleConns = maxIdle
		o.maxOpenConns = maxOpen
		o.connLifetime = lifetime
	}
}

func ParseLogLevel(level string) (logger.LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent, true
	case "error":
		return logger.Error, true
	case "warn":
		return logger.Warn, true
	case "info":
		return logger.Info, true
	}
	return 0, false
}

func newLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)
}

// NewGormDBFromDSN opens a pooled Postgres connection. Driver errors are
// translated so callers can match gorm.ErrDuplicatedKey and friends.
func NewGormDBFromDSN(dsn string, opts ...Option) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}

	o := options{
		logLevel:     logger.Warn,
		maxIdleConns: 10,
		maxOpenConns: 100,
		connLifetime: time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger(o.logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(o.maxIdleConns)
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetConnMaxLifetime(o.connLifetime)

	return db, nil
}
