package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the duration above which statements are logged as warnings
const slowQuery = 200 * time.Millisecond

// gormLogger sends gorm's output to the service logger
type gormLogger struct {
	log *zap.Logger

	level logger.LogLevel
}

func newGormLogger(log *zap.Logger) *gormLogger {
	return &gormLogger{log: log.Named("gorm"), level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {

	clone := *l

	clone.level = level

	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {

	if l.level >= logger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {

	if l.level >= logger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {

	if l.level >= logger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {

	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {

	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:

		sql, rows := fc()

		l.log.Error("query failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))

	case elapsed > slowQuery && l.level >= logger.Warn:

		sql, rows := fc()

		l.log.Warn("slow query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))

	case l.level >= logger.Info:

		sql, rows := fc()

		l.log.Debug("query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
