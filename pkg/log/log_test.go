package log

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yeisme/dropvault/pkg/configs"
)

func TestBuildWritesToStderr(t *testing.T) {
	var buf bytes.Buffer

	l := build(configs.LogConfig{Level: "info"}, false, &buf)
	l.Info().Str("token", "abc").Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "abc")
}

func TestBuildInvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer

	_ = build(configs.LogConfig{Level: "loud"}, false, &buf)

	assert.Contains(t, buf.String(), "defaulting to info")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestGinWriter(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf)
	w := NewGinWriter(&l, zerolog.WarnLevel)

	n, err := w.Write([]byte("  route registered \n"))
	assert.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "route registered")
}

func TestGormLoggerTrace(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer

	g := NewGormLogger(zerolog.New(&buf), "warn", 10*time.Millisecond)
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	// 记录不存在的错误不输出
	g.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	g.Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
	assert.Contains(t, buf.String(), "gorm query failed")

	buf.Reset()
	g.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
	assert.Contains(t, buf.String(), "slow sql")

	buf.Reset()
	g.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("silent"))
	assert.Equal(t, gormlogger.Info, ParseGormLevel("INFO"))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("whatever"))
}
