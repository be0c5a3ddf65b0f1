package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("records saved", slog.Int("appointments", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "records saved", entry["msg"])
	require.Equal(t, float64(2), entry["appointments"])
	require.Contains(t, entry, "source")

	buf.Reset()
	logger := newLogger(&Config{LogFormat: "pretty"}, &buf)
	logger.Debug("debug enabled outside production")
	require.True(t, strings.Contains(buf.String(), "msg=\"debug enabled outside production\""))

	buf.Reset()
	newLogger(&Config{AppEnv: "production"}, &buf).Debug("hidden")
	require.Empty(t, buf.String())
}
