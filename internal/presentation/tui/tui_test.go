package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer("notty", 60)
	require.NoError(t, err)

	out, err := render("## Phase: play\n\n| key | value |\n|---|---|\n| count | 1 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Phase: play")
	assert.Contains(t, out, "count")
}

func TestPrintBanner(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, termenv.EnvColorProfile())

	var buf bytes.Buffer
	PrintBanner(&buf, "counter v1")
	out := buf.String()
	assert.Contains(t, out, "|_____\\__,_|")
	assert.True(t, strings.Contains(out, "counter v1"))
}
