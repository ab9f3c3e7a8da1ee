// Package logging keeps a bounded in-memory log of agent activity, mirrors it
// to stderr, and handles crash logs and optional Sentry reporting.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// ParseLevel maps a level name to a Level. ok is false for unknown names.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Category groups log entries by subsystem.
type Category string

const (
	CatSystem    Category = "system"
	CatHTTP      Category = "http"
	CatWebSocket Category = "websocket"
	CatCard      Category = "card"
	CatDiscovery Category = "discovery"
)

// Entry is a single log record.
type Entry struct {
	ID        uint64         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Stats summarizes the buffer contents.
type Stats struct {
	Total      int              `json:"total"`
	Capacity   int              `json:"capacity"`
	ByLevel    map[string]int   `json:"byLevel"`
	ByCategory map[Category]int `json:"byCategory"`
}

// Logger is a fixed-size ring buffer of entries.
type Logger struct {
	mu       sync.RWMutex
	entries  []Entry
	next     int
	full     bool
	nextID   uint64
	minLevel Level
	echo     bool
}

// New creates a logger holding at most capacity entries.
func New(capacity int, minLevel Level) *Logger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Logger{
		entries:  make([]Entry, capacity),
		minLevel: minLevel,
		echo:     true,
	}
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

// Init replaces the package logger.
func Init(capacity int, minLevel Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(capacity, minLevel)
}

// Get returns the package logger, creating a default one on first use.
func Get() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(1000, LevelInfo)
	}
	return defaultLogger
}

// SetEcho turns stderr mirroring on or off.
func (l *Logger) SetEcho(on bool) {
	l.mu.Lock()
	l.echo = on
	l.mu.Unlock()
}

// Log records an entry if it meets the minimum level.
func (l *Logger) Log(level Level, cat Category, msg string, data map[string]any) {
	l.mu.Lock()
	if level < l.minLevel {
		l.mu.Unlock()
		return
	}

	l.nextID++
	entry := Entry{
		ID:        l.nextID,
		Timestamp: time.Now(),
		Level:     level,
		Category:  cat,
		Message:   msg,
		Data:      data,
	}
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	echo := l.echo
	l.mu.Unlock()

	if echo {
		if len(data) > 0 {
			log.Printf("[%s] [%s] %s %s", strings.ToUpper(level.String()), cat, msg, formatData(data))
		} else {
			log.Printf("[%s] [%s] %s", strings.ToUpper(level.String()), cat, msg)
		}
	}
}

func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

// snapshot returns entries oldest first.
func (l *Logger) snapshot() []Entry {
	if !l.full {
		out := make([]Entry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// GetEntries returns up to limit of the newest entries, newest first.
// minLevel and category are optional filters.
func (l *Logger) GetEntries(limit int, minLevel *Level, category *Category) []Entry {
	l.mu.RLock()
	all := l.snapshot()
	l.mu.RUnlock()

	out := make([]Entry, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := all[i]
		if minLevel != nil && e.Level < *minLevel {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats returns counts for the buffered entries.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	all := l.snapshot()
	capacity := len(l.entries)
	l.mu.RUnlock()

	s := Stats{
		Total:      len(all),
		Capacity:   capacity,
		ByLevel:    make(map[string]int),
		ByCategory: make(map[Category]int),
	}
	for _, e := range all {
		s.ByLevel[e.Level.String()]++
		s.ByCategory[e.Category]++
	}
	return s
}

// Clear drops all buffered entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Entry, len(l.entries))
	l.next = 0
	l.full = false
}

func Debug(cat Category, msg string, data map[string]any) {
	Get().Log(LevelDebug, cat, msg, data)
}

func Info(cat Category, msg string, data map[string]any) {
	Get().Log(LevelInfo, cat, msg, data)
}

func Warn(cat Category, msg string, data map[string]any) {
	Get().Log(LevelWarn, cat, msg, data)
}

func Error(cat Category, msg string, data map[string]any) {
	Get().Log(LevelError, cat, msg, data)
}
