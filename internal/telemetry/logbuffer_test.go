package telemetry

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_CapturesZerologEvents(t *testing.T) {
	buf := NewLogBuffer(10, zerolog.InfoLevel)
	logger := zerolog.New(zerolog.MultiLevelWriter(buf)).Level(zerolog.TraceLevel)

	logger.Info().Msg("server started")
	logger.Debug().Msg("not captured")
	logger.Warn().Str("logger", "ratelimit").Msg("rate limit exceeded")
	logger.Error().Msg("boom")

	events := buf.Fetch(10, "")
	require.Len(t, events, 3)
	assert.Equal(t, RootLogger, events[0].Logger)
	assert.Equal(t, "INFO", events[0].Level)
	assert.Equal(t, "server started", events[0].Message)
	assert.Equal(t, "ratelimit", events[1].Logger)
	assert.Equal(t, "WARN", events[1].Level)
	assert.Equal(t, "ERROR", events[2].Level)
	assert.Greater(t, events[0].Created, 0.0)
}

func TestLogBuffer_FetchLevelIsCaseInsensitive(t *testing.T) {
	buf := NewLogBuffer(10, zerolog.InfoLevel)
	logger := zerolog.New(buf)
	logger.Info().Msg("a")
	logger.Warn().Msg("b")
	logger.Info().Msg("c")

	for _, level := range []string{"info", "INFO", " Info "} {
		got := buf.Fetch(10, level)
		require.Len(t, got, 2, level)
		assert.Equal(t, "a", got[0].Message)
		assert.Equal(t, "c", got[1].Message)
	}
	assert.Len(t, buf.Fetch(10, "warning"), 1)
	assert.Empty(t, buf.Fetch(10, "error"))
}

func TestLogBuffer_FetchFiltersThenLimits(t *testing.T) {
	buf := NewLogBuffer(100, zerolog.InfoLevel)
	logger := zerolog.New(buf)
	for i := 0; i < 10; i++ {
		logger.Info().Msg(fmt.Sprintf("info-%d", i))
		logger.Error().Msg(fmt.Sprintf("error-%d", i))
	}

	got := buf.Fetch(2, "error")
	require.Len(t, got, 2)
	assert.Equal(t, "error-8", got[0].Message)
	assert.Equal(t, "error-9", got[1].Message)
	assert.Empty(t, buf.Fetch(0, ""))
}

func TestLogBuffer_Eviction(t *testing.T) {
	buf := NewLogBuffer(3, zerolog.InfoLevel)
	logger := zerolog.New(buf)
	for i := 0; i < 5; i++ {
		logger.Info().Msg(fmt.Sprintf("m%d", i))
	}
	got := buf.Fetch(10, "")
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Message)
	assert.Equal(t, "m4", got[2].Message)
}

func TestLogBuffer_NonJSONPayload(t *testing.T) {
	buf := NewLogBuffer(3, zerolog.InfoLevel)
	n, err := buf.WriteLevel(zerolog.WarnLevel, []byte("plain text line\n"))
	require.NoError(t, err)
	assert.Equal(t, len("plain text line\n"), n)

	got := buf.Fetch(1, "warn")
	require.Len(t, got, 1)
	assert.Equal(t, "plain text line", got[0].Message)
	assert.Equal(t, RootLogger, got[0].Logger)

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
}
