// Package logging provides categorized file-based logging for lanea.
// Each category writes to its own rotated file under <ops root>/logs/;
// until Initialize is called every category logs to a no-op sink.
package logging

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category names a logging stream, one per subsystem.
type Category string

const (
	CategoryBoot        Category = "boot"
	CategoryStaleness   Category = "staleness"
	CategoryEvidence    Category = "evidence"
	CategoryCommittee   Category = "committee"
	CategorySufficiency Category = "sufficiency"
	CategoryPhase       Category = "phase"
	CategoryMeeting     Category = "meeting"
	CategoryDecision    Category = "decision"
	CategoryWorkStatus  Category = "workstatus"
	CategoryGate        Category = "gate"
	CategoryEvents      Category = "events"
	CategoryAPI         Category = "api"
)

var (
	mu      sync.RWMutex
	loggers = map[Category]*zap.SugaredLogger{}
	logsDir string
	debug   bool
)

// Initialize points all categories at <opsRoot>/logs. Safe to call once at
// startup; callers that never initialize get no-op loggers.
func Initialize(opsRoot string, debugMode bool) {
	mu.Lock()
	defer mu.Unlock()
	logsDir = filepath.Join(opsRoot, "logs")
	debug = debugMode
	loggers = map[Category]*zap.SugaredLogger{}
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if lg, found := loggers[cat]; found {
		mu.RUnlock()
		return lg
	}
	dir := logsDir
	mu.RUnlock()

	if dir == "" {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if lg, found := loggers[cat]; found {
		return lg
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, string(cat)+".log"),
		MaxSize:    20, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	})

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)

	lg := zap.New(core).Sugar().With("category", string(cat))
	loggers[cat] = lg
	return lg
}

// Sync flushes every active category logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, lg := range loggers {
		_ = lg.Sync()
	}
}
