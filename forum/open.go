package forum

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

// OpenStore connects to the database of the given type ("postgres",
// "sqlite" or "mysql") and runs the schema migration.
func OpenStore(ctx context.Context, dbType, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch dbType {
	case "postgres":
		st, err = NewPostgresStore(ctx, dsn)
	case "sqlite", "mysql":
		st, err = NewBunStore(dbType, dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: '%s'", dbType)
	}
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	Logger.Debug().Str("db", dbType).Dur("took", time.Since(start)).Msg("migrations applied")
	return st, nil
}

// NewBunStore opens a SQLite or MySQL database. It does not migrate.
func NewBunStore(dbType, dsn string) (*BunStore, error) {
	maxOpen, maxIdle, lifetime := defaultMaxOpenConns, defaultMaxIdleConns, defaultConnMaxLifetime
	switch dbType {
	case "sqlite":
		// Each connection to an in-memory database sees its own database.
		if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
			maxOpen, maxIdle, lifetime = 1, 1, 0
		}
		dsn = sqliteDSN(dsn)
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported database type for bun store: '%s'", dbType)
	}

	sqlDB, err := sql.Open(dbType, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var db *bun.DB
	if dbType == "mysql" {
		db = bun.NewDB(sqlDB, mysqldialect.New())
	} else {
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	}
	return newBunStore(db, dbType), nil
}

// sqliteDSN turns on foreign keys and a busy timeout unless the DSN already
// sets pragmas itself, and begins transactions IMMEDIATE so concurrent writers
// queue on the busy timeout instead of failing to upgrade a read lock.
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" {
		return dsn
	}
	var params []string
	if !strings.Contains(dsn, "_pragma") {
		params = append(params, "_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "_txlock") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
