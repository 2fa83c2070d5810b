// Package sqlstore opens the SQLite database shared by the content store and
// the user table.
package sqlstore

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// Pragmas applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

type Options struct {
	// Path is the database file. ":memory:" opens a private in-memory db.
	Path   string
	Logger log.Logger
	// SlowQuery logs statements slower than this at warn. Zero disables.
	SlowQuery time.Duration
}

// Open creates the parent directory if needed and returns a gorm handle with
// a single open connection, so writers serialize inside the process and
// busy_timeout covers other processes such as the createuser command.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, xerrors.New("sqlstore: empty database path")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "sqlstore: create parent dir for %s", opts.Path)
		}
	}

	db, err := gorm.Open(sqlite.Open(DSN(opts.Path)), &gorm.Config{
		Logger:  newGormLogger(opts.Logger, opts.SlowQuery),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "sqlstore: open %s", opts.Path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerrors.Wrap(err, "sqlstore: underlying handle")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := Ping(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// DSN appends the connection pragmas to path.
func DSN(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Ping checks the database is reachable. Used by readiness.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return xerrors.New("sqlstore: nil handle")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return xerrors.Wrap(err, "sqlstore: underlying handle")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return xerrors.Wrap(err, "sqlstore: ping")
	}
	return nil
}

// Close releases the pool. Safe on nil.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return xerrors.Wrap(sqlDB.Close(), "sqlstore: close")
}
