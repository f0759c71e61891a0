// Package log 提供基于 zerolog 的日志工具，支持 stderr 和文件输出（lumberjack 轮转）.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/dropvault/pkg/configs"
)

var (
	logger   zerolog.Logger
	initOnce sync.Once
	mu       sync.RWMutex
)

// Init 按给定配置初始化全局 logger，可重复调用，后一次覆盖前一次.
func Init(cfg configs.LogConfig, debug bool) {
	l := build(cfg, debug, os.Stderr)

	initOnce.Do(func() {})

	mu.Lock()
	logger = l
	log.Logger = l
	mu.Unlock()
}

// initFromGlobal 在未显式 Init 时使用全局配置初始化.
func initFromGlobal() {
	cfg := configs.GetConfig()
	l := build(cfg.Log, cfg.Server.Debug, os.Stderr)

	mu.Lock()
	logger = l
	log.Logger = l
	mu.Unlock()
}

// build 构建 zerolog logger.
func build(logCfg configs.LogConfig, debug bool, stderr io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(logCfg.Level))
	if err != nil || logCfg.Level == "" {
		if logCfg.Level != "" {
			fmt.Fprintf(stderr, "invalid log level %q, defaulting to info\n", logCfg.Level)
		}

		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	// always add stderr as default human-friendly output, set TimeFormat to time.Kitchen
	writers := []io.Writer{zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = stderr
		w.TimeFormat = time.Kitchen
	})}

	if logCfg.EnableFile {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logCfg.FilePath,
			MaxSize:    logCfg.MaxSize,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAge,
			Compress:   logCfg.Compress,
		})
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).With()
	if debug {
		ctx = ctx.Caller().Stack()

		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return ctx.Timestamp().Logger()
}

// Logger 返回全局 logger.
func Logger() *zerolog.Logger {
	// ensure logger is initialized on first use
	initOnce.Do(initFromGlobal)

	mu.RLock()
	l := logger
	mu.RUnlock()

	return &l
}

// Component 返回带 component 字段的子 logger.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// GinWriter 把 Gin 文本行转发为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch w.level {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		w.logger.Error().Msg(msg)
	case zerolog.WarnLevel:
		w.logger.Warn().Msg(msg)
	default:
		w.logger.Info().Msg(msg)
	}

	return len(p), nil
}
