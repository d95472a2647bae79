package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestParamsFilterDropsBoundValues(t *testing.T) {
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Info})

	sql, params := l.ParamsFilter(context.Background(), "SELECT * FROM dealers WHERE tin = ?", "C0001234567")
	assert.Equal(t, "SELECT * FROM dealers WHERE tin = ?", sql)
	assert.Nil(t, params)
}

func TestLogModeReturnsCopy(t *testing.T) {
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn})

	quiet := l.LogMode(gormlogger.Silent).(*GormLogger)
	assert.Equal(t, gormlogger.Silent, quiet.level)
	assert.Equal(t, gormlogger.Warn, l.level)
}
