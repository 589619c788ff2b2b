package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/capacity-checker/internal/pkg/envutil"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type Service struct {
	db      *gorm.DB
	log     *logger.Logger
	dialect string
}

// DSNFromEnv prefers DATABASE_DSN and otherwise assembles a Postgres URL from POSTGRES_*.
func DSNFromEnv() string {
	if dsn := envutil.String("DATABASE_DSN", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envutil.String("POSTGRES_USER", "postgres"),
		envutil.String("POSTGRES_PASSWORD", ""),
		envutil.String("POSTGRES_HOST", "localhost"),
		envutil.String("POSTGRES_PORT", "5432"),
		envutil.String("POSTGRES_NAME", "capacity"),
	)
}

// Dialect picks the driver for a DSN: sqlite for "sqlite:", "file:", ":memory:" and *.db paths,
// postgres otherwise.
func Dialect(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "sqlite:"),
		strings.HasPrefix(d, "file:"),
		d == ":memory:",
		strings.HasSuffix(d, ".db"),
		strings.HasSuffix(d, ".sqlite"):
		return "sqlite"
	default:
		return "postgres"
	}
}

func Open(dsn string, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	dialect := Dialect(dsn)
	var (
		conn *gorm.DB
		err  error
	)
	switch dialect {
	case "sqlite":
		conn, err = gorm.Open(sqlite.Open(strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite:")), cfg)
	default:
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	if dialect == "sqlite" {
		// A single connection keeps ":memory:" databases shared across the pool.
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	serviceLog.Info("database connected", "dialect", dialect, "dsn", dsn)
	return &Service{db: conn, log: serviceLog, dialect: dialect}, nil
}

func (s *Service) DB() *gorm.DB    { return s.db }
func (s *Service) Dialect() string { return s.dialect }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SQLDB exposes the pool for metrics registration.
func (s *Service) SQLDB() (*sql.DB, error) { return s.db.DB() }
