package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

// gormLogger routes gorm's own logging into the service logger. Statements
// are only logged when they fail or are slow.
type gormLogger struct {
	l     log.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(l log.Logger, slow time.Duration) gormlogger.Interface {
	return &gormLogger{l: l.With("component", "gorm"), level: gormlogger.Warn, slow: slow}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.l.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.l.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.l.Error(ctx, fmt.Errorf(msg, args...), "gorm error")
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.l.Error(ctx, err, "sql statement failed", "sql", sql, "rows", rows, "elapsed", elapsed)
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.l.Warn(ctx, "slow sql statement", "sql", sql, "rows", rows, "elapsed", elapsed, "threshold", g.slow)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.l.Debug(ctx, "sql statement", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
