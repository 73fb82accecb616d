package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupPrunesOldRunLogs(t *testing.T) {
	dir := t.TempDir()

	// Timestamps far in the past keep the freshly opened log sorted
	// last, so it always survives the prune.
	var names []string
	for month := 1; month <= 12; month++ {
		name := fmt.Sprintf("%s2020%02d01_000000%s", filePrefix, month, fileSuffix)
		names = append(names, name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o750))

	log, err := New(Options{Dir: dir, KeepFiles: 5, ConsoleOut: new(bytes.Buffer)})
	require.NoError(t, err)
	defer log.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var runLogs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), filePrefix) {
			runLogs = append(runLogs, entry.Name())
		}
	}
	assert.Len(t, runLogs, 5)

	// The newest four of the pre-existing logs survive alongside the
	// active one; everything older is gone.
	for _, name := range names[:8] {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}
	for _, name := range names[8:] {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.DirExists(t, filepath.Join(dir, "archive"))
}

func TestCleanupKeepsEverythingUnderBudget(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, filePrefix+"20200101_000000"+fileSuffix)
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o600))

	log, err := New(Options{Dir: dir, KeepFiles: 5, ConsoleOut: new(bytes.Buffer)})
	require.NoError(t, err)
	defer log.Close()

	assert.FileExists(t, old)
}

func TestLogFilePatternIgnoresForeignFiles(t *testing.T) {
	assert.True(t, logFilePattern.Match(filePrefix+"20260309_080000"+fileSuffix))
	assert.False(t, logFilePattern.Match("notes.txt"))
	assert.False(t, logFilePattern.Match("rollcall_20260309_080000.log.bak"))
	assert.False(t, logFilePattern.Match("other_20260309.log"))
}
