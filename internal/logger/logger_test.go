package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("debug")

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		require.Equal(t, tt.want, zerolog.GlobalLevel(), "level %q", tt.in)
	}
}

func TestConfigure(t *testing.T) {
	defer SetOutput(os.Stdout, false)
	defer SetLevel("debug")

	Configure("warn", "console")
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Configure("debug", "json")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestWithComponent_JSON(t *testing.T) {
	defer SetOutput(os.Stdout, false)

	var buf bytes.Buffer
	SetOutput(&buf, true)
	WithComponent("engine").Info().Int64("expense_id", 7).Msg("Expense submitted")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "engine", line["component"])
	require.Equal(t, serviceName, line["service"])
	require.Equal(t, "Expense submitted", line["message"])
	require.EqualValues(t, 7, line["expense_id"])
}

func TestSetOutput_Console(t *testing.T) {
	defer SetOutput(os.Stdout, false)

	var buf bytes.Buffer
	SetOutput(&buf, false)
	Log.Info().Str("key", "value").Msg("console line")
	require.Contains(t, buf.String(), "console line")
	require.Contains(t, buf.String(), "key=")
}
