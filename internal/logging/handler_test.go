package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestHandlerWritesAttrsAndGroups(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("room", "123456").WithGroup("player")

	log.Info("joined", "id", "p1")
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "joined")
	assert.Contains(t, out, "room=123456")
	assert.Contains(t, out, "player.id=p1")
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}
