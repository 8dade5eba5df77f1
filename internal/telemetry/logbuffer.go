package telemetry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/org/authcore/pkg/models"
	"github.com/rs/zerolog"
)

// DefaultLogCapacity is the number of log lines kept in memory.
const DefaultLogCapacity = 1000

// RootLogger is the name recorded for events without a "logger" field.
const RootLogger = "root"

// LogBuffer captures structured log events emitted through zerolog.
// Plug it into the pipeline with zerolog.MultiLevelWriter.
type LogBuffer struct {
	ring     *Ring[models.LogEvent]
	minLevel zerolog.Level
	now      func() time.Time
}

var _ zerolog.LevelWriter = (*LogBuffer)(nil)

// NewLogBuffer creates a LogBuffer keeping the newest capacity events at or above minLevel.
func NewLogBuffer(capacity int, minLevel zerolog.Level) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{
		ring:     NewRing[models.LogEvent](capacity),
		minLevel: minLevel,
		now:      time.Now,
	}
}

// Write records p at no particular level.
func (b *LogBuffer) Write(p []byte) (int, error) {
	return b.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel records one encoded zerolog event. It never fails.
func (b *LogBuffer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < b.minLevel {
		return len(p), nil
	}
	var fields struct {
		Logger  string `json:"logger"`
		Message string `json:"message"`
	}
	ev := models.LogEvent{
		Logger:  RootLogger,
		Level:   levelName(level),
		Created: float64(b.now().UnixNano()) / 1e9,
	}
	if err := json.Unmarshal(p, &fields); err != nil {
		ev.Message = strings.TrimRight(string(p), "\n")
	} else {
		if fields.Logger != "" {
			ev.Logger = fields.Logger
		}
		ev.Message = fields.Message
	}
	b.ring.Append(ev)
	return len(p), nil
}

// Fetch returns up to limit of the newest events, oldest first. A non-empty level
// keeps only events with exactly that level, compared case-insensitively.
func (b *LogBuffer) Fetch(limit int, level string) []models.LogEvent {
	level = normalizeLevel(level)
	if level == "" {
		return b.ring.Last(limit)
	}
	return b.ring.LastMatching(limit, func(ev models.LogEvent) bool {
		return ev.Level == level
	})
}

// Len returns the number of stored events.
func (b *LogBuffer) Len() int { return b.ring.Len() }

// Reset drops every event.
func (b *LogBuffer) Reset() { b.ring.Reset() }

func levelName(level zerolog.Level) string {
	if level == zerolog.NoLevel {
		return ""
	}
	return strings.ToUpper(level.String())
}

// normalizeLevel maps user input onto stored level names. WARNING and CRITICAL
// are accepted as aliases.
func normalizeLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	switch level {
	case "WARNING":
		return "WARN"
	case "CRITICAL":
		return "FATAL"
	}
	return level
}
