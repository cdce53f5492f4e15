// Package logging hands out per-module slog loggers that share one
// platform output: stdout on the host, a UART on boards.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Config selects the global level, the handler format ("text" or "json")
// and optional per-module level overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu            sync.RWMutex
	cfg           Config
	initialized   bool
	out           io.Writer
	moduleLoggers = map[string]*slog.Logger{}
	moduleLevels  = map[string]*slog.LevelVar{}
)

// Initialize applies c to every existing and future module logger and
// installs a matching default logger.
func Initialize(c Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg, initialized = c, true
	w := writer()
	for module, lv := range moduleLevels {
		lv.Set(levelFor(module))
		moduleLoggers[module] = slog.New(newHandler(w, c.Format, lv)).With("module", module)
	}
	slog.SetDefault(slog.New(newHandler(w, c.Format, levelOr(c.Level, slog.LevelInfo))))
}

// SetOutput redirects all loggers created afterwards, and those rebuilt by
// the next Initialize, to w. nil restores the platform output.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	l, ok := moduleLoggers[module]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := moduleLoggers[module]; ok {
		return l
	}
	lv := &slog.LevelVar{}
	lv.Set(levelFor(module))
	format := "text"
	if initialized {
		format = cfg.Format
	}
	l = slog.New(newHandler(writer(), format, lv)).With("module", module)
	moduleLoggers[module] = l
	moduleLevels[module] = lv
	return l
}

// SetModuleLevel changes one module's level at runtime.
func SetModuleLevel(module, level string) bool {
	lvl, ok := parseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)
	mu.Lock()
	moduleLevels[module].Set(lvl)
	mu.Unlock()
	return true
}

func writer() io.Writer {
	if out != nil {
		return out
	}
	return platformOutput()
}

func newHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// levelFor must be called with mu held.
func levelFor(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	if s, ok := cfg.Modules[module]; ok {
		if l, ok := parseLevel(s); ok {
			return l
		}
	}
	return levelOr(cfg.Level, slog.LevelInfo)
}

func levelOr(s string, def slog.Level) slog.Level {
	if l, ok := parseLevel(s); ok {
		return l
	}
	return def
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
