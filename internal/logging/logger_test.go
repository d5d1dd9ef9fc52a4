package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_WritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	s, err := Open(Options{Level: "debug", Dir: dir, Console: &console, RunID: "run-1"})
	require.NoError(t, err)

	s.Info().Str("term", "cafes in Rome").Msg("collecting")
	require.NoError(t, s.Close())

	assert.Contains(t, console.String(), "collecting")

	data, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-1"`)
	assert.Contains(t, string(data), `"term":"cafes in Rome"`)
}

func TestOpen_QuietWithoutDir(t *testing.T) {
	s, err := Open(Options{Quiet: true})
	require.NoError(t, err)
	assert.Empty(t, s.Path)
	s.Warn().Msg("dropped")
	assert.NoError(t, s.Close())
}
