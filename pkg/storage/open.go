package storage

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database and sizes its connection pool.
// driver is "sqlite" (default) or "postgres".
func Open(driver, dsn string, opts ...PoolOption) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case isSQLite(driver):
		if !strings.Contains(dsn, "_busy_timeout") {
			dsn = appendParam(dsn, "_busy_timeout=5000")
		}
		dialector = sqlite.Open(dsn)
	case strings.EqualFold(strings.TrimSpace(driver), "postgres"), strings.EqualFold(strings.TrimSpace(driver), "postgresql"):
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Newf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if err := poolFor(driver, dsn, opts...).apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
